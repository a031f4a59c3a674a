package clickhouse

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/catalog-importer/internal/config"
	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Connect opens a single ClickHouse connection.
func Connect(cred credential.Database) (driver.Conn, error) {
	return clickhouse.Open(&clickhouse.Options{
		Addr: []string{net.JoinHostPort(cred.Host, fmtPort(cred.Port))},
		Auth: clickhouse.Auth{
			Database: cred.Database,
			Username: cred.User,
			Password: cred.Password,
		},
		DialTimeout: 10 * time.Second,
	})
}

func fmtPort(p int) string {
	if p <= 0 {
		return "9000"
	}
	return strconv.Itoa(p)
}

func createTableSQL(db string) string {
	q := `CREATE TABLE IF NOT EXISTS ` + db + `.documents (
		id UUID,
		collection LowCardinality(String),
		data String,
		created_at DateTime64(3)
	) ENGINE = MergeTree
	ORDER BY (collection, id)`
	if policy := config.ClickHouseStoragePolicy(); policy != "" {
		q += ` SETTINGS storage_policy = '` + policy + `'`
	}
	return q
}

// InitSchema creates db.documents if not exists.
func InitSchema(ctx context.Context, conn driver.Conn, db string) error {
	return conn.Exec(ctx, createTableSQL(db))
}

// InsertDocument writes one document. A single-row batch is still one
// request per record.
func InsertDocument(ctx context.Context, conn driver.Conn, db string, id uuid.UUID, collection string, fields map[string]any, now time.Time) error {
	data, err := json.Marshal(store.ResolveTimestamps(fields, now))
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	batch, err := conn.PrepareBatch(ctx, `INSERT INTO `+db+`.documents`)
	if err != nil {
		return err
	}
	if err := batch.Append(id, collection, string(data), now); err != nil {
		batch.Abort()
		return err
	}
	return batch.Send()
}

// buildFilter renders the WHERE clause shared by the count and the delete.
// String fields compare by content, other JSON values by their raw literal.
func buildFilter(collection string, match map[string]any) (string, []any) {
	var b strings.Builder
	b.WriteString("collection = ?")
	args := []any{collection}
	for _, k := range store.SortedKeys(match) {
		b.WriteString(" AND if(JSONType(data, ?) = 'String', JSONExtractString(data, ?), JSONExtractRaw(data, ?)) = ?")
		args = append(args, k, k, k, store.Text(match[k]))
	}
	return b.String(), args
}

// DeleteWhere counts and then lightweight-deletes matching documents.
func DeleteWhere(ctx context.Context, conn driver.Conn, db, collection string, match map[string]any) (int, error) {
	where, args := buildFilter(collection, match)
	var n uint64
	if err := conn.QueryRow(ctx, "SELECT count() FROM "+db+".documents WHERE "+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := conn.Exec(ctx, "DELETE FROM "+db+".documents WHERE "+where, args...); err != nil {
		return 0, err
	}
	return int(n), nil
}
