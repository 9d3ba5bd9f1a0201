package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/lehigh-university-libraries/productfinder/internal/source"
)

const (
	signatureHeader        = "X-Signature"
	dropboxSignatureHeader = "X-Dropbox-Signature"

	maxNotificationBytes = 1 << 20
	defaultAccount       = "default"
)

// VerifySignature checks a hex encoded HMAC-SHA256 of body under secret in constant time
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return models.ErrMissingSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: not hex", models.ErrMissingSignature)
	}
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", models.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return models.ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body, as sent by the notifier
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleChallenge echoes the verification challenge
func (l *Listener) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	if challenge == "" {
		l.writeError(w, "Missing challenge parameter", http.StatusBadRequest)
		return
	}

	slog.Info("Answering webhook verification")
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write([]byte(challenge)); err != nil {
		slog.Error("Unable to write challenge", "err", err)
	}
}

type notification struct {
	ListFolder struct {
		Accounts []accountRef `json:"accounts"`
	} `json:"list_folder"`
}

// accountRef is either a bare account id or an object carrying a cursor
type accountRef struct {
	ID     string `json:"account_id"`
	Cursor string `json:"cursor"`
}

func (a *accountRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*a = accountRef{ID: id}
		return nil
	}
	type plain accountRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = accountRef(p)
	return nil
}

// HandleNotification validates a change notification, fetches what changed and
// schedules a run when an image in the monitored folder was touched.
func (l *Listener) HandleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		l.writeError(w, "Unable to read request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		signature = r.Header.Get(dropboxSignatureHeader)
	}
	if err := VerifySignature(l.Secret, body, signature); err != nil {
		code := http.StatusForbidden
		if errors.Is(err, models.ErrMissingSignature) {
			code = http.StatusBadRequest
		}
		l.writeError(w, "Rejected notification: "+err.Error(), code)
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		l.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	accounts := n.ListFolder.Accounts
	if len(accounts) == 0 {
		accounts = []accountRef{{ID: defaultAccount}}
	}

	ctx, cancel := l.changeContext(r.Context())
	defer cancel()

	relevant := false
	for _, account := range accounts {
		if l.accountChanged(ctx, account) {
			relevant = true
		}
	}

	if relevant {
		queued := l.Scheduler.Schedule()
		slog.Info("Scheduled sync from notification", "accounts", len(accounts), "queued", queued)
	} else {
		slog.Info("Notification had no relevant changes", "accounts", len(accounts))
	}

	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write response", "err", err)
	}
}

// accountChanged follows the account's cursor and reports whether any image in the
// monitored folder changed. Without a client or a cursor every notification counts.
func (l *Listener) accountChanged(ctx context.Context, account accountRef) bool {
	id := account.ID
	if id == "" {
		id = defaultAccount
	}
	if l.Client == nil {
		return true
	}

	cursor := account.Cursor
	if cursor == "" && l.Cursors != nil {
		stored, err := l.Cursors.Cursor(id)
		if err != nil {
			slog.Error("Failed to read stored cursor", "account", id, "err", err)
		}
		cursor = stored
	}

	if cursor == "" {
		slog.Info("No cursor for account, treating notification as a full resync", "account", id)
		latest, err := l.Client.LatestCursor(ctx, source.NormalizeFolder(l.Folder), true)
		if err != nil {
			slog.Error("Failed to get latest cursor", "account", id, "err", err)
			return true
		}
		l.saveCursor(id, latest)
		return true
	}

	entries, last, err := source.Changes(ctx, l.Client, cursor)
	l.saveCursor(id, last)
	if err != nil {
		slog.Error("Failed to fetch changes", "account", id, "err", err)
		return true
	}

	for _, e := range entries {
		if e.Tag == source.TagFile && source.InFolder(l.Folder, e.PathLower) && source.IsImage(e.Name) {
			slog.Debug("Relevant change", "account", id, "path", e.PathDisplay)
			return true
		}
	}
	return false
}

func (l *Listener) saveCursor(account, cursor string) {
	if cursor == "" || l.Cursors == nil {
		return
	}
	if err := l.Cursors.SetCursor(account, cursor); err != nil {
		slog.Error("Failed to store cursor", "account", account, "err", err)
	}
}
