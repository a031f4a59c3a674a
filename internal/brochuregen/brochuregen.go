package brochuregen

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/catalog-importer/internal/pages"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultBucket = "catalogapp.firebasestorage.app"

// Brochure is a single brochure record as the mobile app reads it.
type Brochure struct {
	MarketName string   `json:"marketName"`
	Language   string   `json:"language"`
	Title      string   `json:"title"`
	Validity   string   `json:"validity"`
	WeekType   string   `json:"weekType"`
	Thumbnail  string   `json:"thumbnail"`
	Pages      []string `json:"pages"`
}

var markets = []string{"lidl", "aldi", "coop", "migros", "denner"}
var languages = []string{"de", "fr", "it"}
var languageNames = map[string]string{"de": "Deutsch", "fr": "Français", "it": "Italiano"}
var weekTypes = []string{"current", "next"}

// Generate returns total brochures. The same seed and start date give the
// same output, catalog IDs included.
func Generate(total int, seed int64, start time.Time) []Brochure {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Brochure, 0, total)
	for i := 0; i < total; i++ {
		market := markets[rng.Intn(len(markets))]
		lang := languages[i%len(languages)]
		week := weekTypes[(i/len(languages))%len(weekTypes)]
		from := start.AddDate(0, 0, 7*((i/len(languages))%len(weekTypes)))

		catalogID := catalogID(rng)
		nPages := 4 + rng.Intn(12)
		pagePaths := make([]string, nPages)
		for p := range pagePaths {
			object := pages.ObjectPath(market, lang, catalogID, fmt.Sprintf("page_%02d.png", p+1))
			pagePaths[p] = pages.GSPath(defaultBucket, object)
		}

		out = append(out, Brochure{
			MarketName: market,
			Language:   lang,
			Title:      fmt.Sprintf("%s Weekly Catalog (%s)", capitalize(market), languageNames[lang]),
			Validity:   fmt.Sprintf("Valid from %s - %s", from.Format("02.01.2006"), from.AddDate(0, 0, 6).Format("02.01.2006")),
			WeekType:   week,
			Thumbnail:  pagePaths[0],
			Pages:      pagePaths,
		})
	}
	return out
}

func catalogID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return fmt.Sprintf("%016x", rng.Uint64())
	}
	return id.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// WriteFile writes brochures as an indented JSON array.
func WriteFile(path string, brochures []Brochure) error {
	data, err := json.MarshalIndent(brochures, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode brochures")
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "write brochures")
}
