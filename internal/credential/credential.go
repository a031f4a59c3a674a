// Package credential reads the secrets an importer run authenticates with.
// Credentials are read once at startup and handed to the store; they are
// never written back.
package credential

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const serviceAccountType = "service_account"

var (
	ErrCredentialUnreadable = errors.New("credential file is unreadable")
	ErrCredentialMalformed  = errors.New("credential file is not valid JSON")
	ErrNotServiceAccount    = errors.New("credential is not a service account key")
	ErrProjectIDMissing     = errors.New("project_id is missing in credential")
	ErrClientEmailMissing   = errors.New("client_email is missing in credential")
	ErrPrivateKeyMissing    = errors.New("private_key is missing in credential")
	ErrHostMissing          = errors.New("host is missing in credential")
)

// ServiceAccount is a Google service account key file.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`

	// Path is the file the key was read from; Google clients load it again
	// themselves.
	Path string `json:"-"`
}

// LoadServiceAccount reads and validates a service account key file.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := readJSON(path, &sa); err != nil {
		return nil, err
	}
	if err := sa.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	sa.Path = path
	return &sa, nil
}

// Validate checks the fields every Google client needs.
func (s *ServiceAccount) Validate() error {
	if s.Type != serviceAccountType {
		return errors.Wrapf(ErrNotServiceAccount, "type %q", s.Type)
	}
	if s.ProjectID == "" {
		return ErrProjectIDMissing
	}
	if s.ClientEmail == "" {
		return ErrClientEmailMissing
	}
	if s.PrivateKey == "" {
		return ErrPrivateKeyMissing
	}
	return nil
}

// String never includes key material.
func (s *ServiceAccount) String() string {
	return s.ClientEmail + " (" + s.ProjectID + ")"
}

// Database holds connection credentials for the SQL document stores.
type Database struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// LoadDatabase reads a database credential file. An empty host is allowed
// here so that an environment override can supply it; call Validate after
// defaults are applied.
func LoadDatabase(path string) (*Database, error) {
	var db Database
	if err := readJSON(path, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// WithDefaults returns a copy with zero fields filled in.
func (d Database) WithDefaults(host string, port int, database, user string) Database {
	if d.Host == "" {
		d.Host = host
	}
	if d.Port <= 0 {
		d.Port = port
	}
	if d.Database == "" {
		d.Database = database
	}
	if d.User == "" {
		d.User = user
	}
	return d
}

func (d Database) Validate() error {
	if d.Host == "" {
		return ErrHostMissing
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(ErrCredentialUnreadable, err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(ErrCredentialMalformed, "%s: %v", path, err)
	}
	return nil
}
