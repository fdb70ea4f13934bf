package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// KeychainService is the secret-store entry name Claude Code uses for
// its OAuth credential document.
const KeychainService = "Claude Code-credentials"

// Document is the full credential file as stored by Claude Code. Only
// the claudeAiOauth sub-object is interpreted; sibling keys round-trip
// verbatim on rewrite.
type Document map[string]json.RawMessage

// Credential is the OAuth state extracted from a Document.
type Credential struct {
	AccessToken      string  `json:"accessToken"`
	RefreshToken     string  `json:"refreshToken"`
	ExpiresAt        float64 `json:"expiresAt"` // epoch milliseconds
	SubscriptionType string  `json:"subscriptionType"`
}

// parseDocument extracts the OAuth credential from a document. False
// when the claudeAiOauth block is missing or has no access token.
func parseDocument(doc Document) (Credential, bool) {
	raw, ok := doc["claudeAiOauth"]
	if !ok {
		return Credential{}, false
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return Credential{}, false
	}
	if cred.AccessToken == "" {
		return Credential{}, false
	}
	return cred, true
}

// applyCredential writes the credential back into the document,
// replacing the claudeAiOauth block and leaving sibling keys untouched.
func applyCredential(doc Document, cred Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("quota: marshaling credential: %w", err)
	}
	doc["claudeAiOauth"] = raw
	return nil
}

// CredentialStore loads and persists credential documents. Load errors
// mean "not available here"; the client falls through to the next
// store.
type CredentialStore interface {
	Load() (Document, error)
	Save(Document) error
}

// FileStore reads and writes the credential document at a fixed path.
// The conventional fallback location is ~/.claude/.credentials.json.
type FileStore struct {
	Path string
}

func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", ".credentials.json")
}

func (s FileStore) Load() (Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("quota: reading credentials file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("quota: parsing credentials file %s: %w", s.Path, err)
	}
	return doc, nil
}

func (s FileStore) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("quota: marshaling credentials: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("quota: writing credentials file: %w", err)
	}
	return nil
}

// SecretStore keeps the document in the OS secret store under
// KeychainService. Platform command wiring lives in the
// secrets_*.go files.
type SecretStore struct {
	Service string
}

func (s SecretStore) Load() (Document, error) {
	raw, err := readSecret(s.Service)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("quota: parsing secret-store credentials: %w", err)
	}
	return doc, nil
}

func (s SecretStore) Save(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("quota: marshaling credentials: %w", err)
	}
	return writeSecret(s.Service, string(data))
}

// defaultStores is the production lookup order: OS secret store first,
// then the fallback file.
func defaultStores() []CredentialStore {
	stores := []CredentialStore{SecretStore{Service: KeychainService}}
	if path := DefaultCredentialsPath(); path != "" {
		stores = append(stores, FileStore{Path: path})
	}
	return stores
}
