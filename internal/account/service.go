package account

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bilitrack/bilitrack/internal/bili"
	"github.com/bilitrack/bilitrack/internal/crypto"
	"github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/models"
	"github.com/bilitrack/bilitrack/internal/store"
)

var (
	sessdataPattern = regexp.MustCompile(`SESSDATA=([^;]+)`)
	biliJctPattern  = regexp.MustCompile(`bili_jct=([^;]+)`)
)

// NavClient is the slice of the upstream client the account service
// needs to verify a session.
type NavClient interface {
	Nav(ctx context.Context, cookie string) (*bili.NavInfo, error)
}

// Service manages bound accounts: binding, secret sealing, credential
// resolution for tasks, and liveness validation.
type Service struct {
	store  store.Store
	client NavClient
	key    []byte
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates an account service. key is the parsed AES-256 key
// used to seal cookie secrets at rest.
func NewService(st store.Store, client NavClient, key []byte, logger *logging.Logger) *Service {
	return &Service{
		store:  st,
		client: client,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

// BindByCookie verifies a raw browser cookie against the platform and
// stores the account with its secrets sealed. Rebinding an already
// known UID replaces the secrets and resets the failure state.
func (s *Service) BindByCookie(ctx context.Context, rawCookie string) (*models.Account, error) {
	sessdata, biliJct, err := extractSecrets(rawCookie)
	if err != nil {
		return nil, err
	}

	nav, err := s.client.Nav(ctx, buildCookie(sessdata, biliJct))
	if err != nil {
		return nil, err
	}
	if !nav.IsLogin {
		return nil, &errors.ErrInvalidCookie{Reason: "session is not logged in"}
	}

	sealedSess, err := crypto.Encrypt(sessdata, s.key)
	if err != nil {
		return nil, fmt.Errorf("sealing SESSDATA: %w", err)
	}
	sealedJct := ""
	if biliJct != "" {
		if sealedJct, err = crypto.Encrypt(biliJct, s.key); err != nil {
			return nil, fmt.Errorf("sealing bili_jct: %w", err)
		}
	}

	uid := strconv.FormatInt(nav.Mid, 10)
	now := s.now()

	acc, existed := s.store.GetAccountByUID(uid)
	if !existed {
		acc = &models.Account{
			ID:        uuid.NewString(),
			UID:       uid,
			CreatedAt: now,
		}
	}
	acc.Nickname = nav.Uname
	acc.Sessdata = sealedSess
	acc.BiliJct = sealedJct
	acc.BindMethod = "cookie"
	acc.Status = models.AccountValid
	acc.LastFailures = 0
	acc.BoundAt = now
	acc.UpdatedAt = now

	if err := s.store.SetAccount(acc); err != nil {
		return nil, err
	}

	s.logger.Info("account bound", "account_id", acc.ID, "uid", acc.UID, "rebind", existed)
	return acc, nil
}

// GetCookie unseals an account's secrets and assembles the cookie
// header value collectors send upstream.
func (s *Service) GetCookie(accountID string) (string, error) {
	acc, ok := s.store.GetAccount(accountID)
	if !ok {
		return "", &errors.ErrCredentialRejected{AccountID: accountID, Err: fmt.Errorf("account not found")}
	}

	sessdata, err := crypto.Decrypt(acc.Sessdata, s.key)
	if err != nil {
		return "", &errors.ErrCredentialRejected{AccountID: accountID, Err: err}
	}
	biliJct := ""
	if acc.BiliJct != "" {
		if biliJct, err = crypto.Decrypt(acc.BiliJct, s.key); err != nil {
			return "", &errors.ErrCredentialRejected{AccountID: accountID, Err: err}
		}
	}
	return buildCookie(sessdata, biliJct), nil
}

// ResolveCookie picks the credential a task should collect with. The
// fallback order is: the task's bound account, an account matching the
// task's author UID, the configured default account, and finally the
// oldest valid account. Unusable accounts are skipped, not errors.
func (s *Service) ResolveCookie(task *models.Task) (*models.Account, string, error) {
	for _, acc := range s.candidates(task) {
		if acc == nil || !acc.IsUsable() {
			continue
		}
		cookie, err := s.GetCookie(acc.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable credential", "account_id", acc.ID, "task_id", task.ID, "error", err.Error())
			continue
		}
		return acc, cookie, nil
	}
	return nil, "", &errors.ErrNoUsableCredential{TaskID: task.ID}
}

func (s *Service) candidates(task *models.Task) []*models.Account {
	var out []*models.Account

	if task.AccountID != "" {
		if acc, ok := s.store.GetAccount(task.AccountID); ok {
			out = append(out, acc)
		}
	}
	if task.AuthorUID != "" {
		if acc, ok := s.store.GetAccountByUID(task.AuthorUID); ok {
			out = append(out, acc)
		}
	}
	if id, ok := s.store.Settings().DefaultAccountID(); ok {
		if acc, ok := s.store.GetAccount(id); ok {
			out = append(out, acc)
		}
	}
	if acc, ok := s.store.OldestValidAccount(); ok {
		out = append(out, acc)
	}
	return out
}

// Validate checks an account's session against the platform and
// records the result. A successful check clears the failure streak.
func (s *Service) Validate(ctx context.Context, accountID string) error {
	_, ok := s.store.GetAccount(accountID)
	if !ok {
		return &errors.ErrCredentialRejected{AccountID: accountID, Err: fmt.Errorf("account not found")}
	}

	cookie, err := s.GetCookie(accountID)
	if err != nil {
		return err
	}

	nav, err := s.client.Nav(ctx, cookie)
	if err == nil && !nav.IsLogin {
		err = &errors.ErrCredentialRejected{AccountID: accountID, Err: fmt.Errorf("session expired upstream")}
	}
	if err != nil {
		// A -101/-111 envelope is the upstream rejecting this cookie,
		// not a transient fault.
		var upstream *errors.ErrUpstreamAPI
		if stderrors.As(err, &upstream) && (upstream.Code == -101 || upstream.Code == -111) {
			err = &errors.ErrCredentialRejected{AccountID: accountID, Err: upstream}
		}
		s.RecordFailure(accountID)
		return err
	}

	return s.store.UpdateAccountValidation(accountID, 0, models.AccountValid, nav.Uname)
}

// RecordFailure bumps an account's consecutive failure count. Past the
// threshold the account flips to expired and stops being resolvable.
func (s *Service) RecordFailure(accountID string) {
	acc, ok := s.store.GetAccount(accountID)
	if !ok {
		return
	}

	failures := acc.LastFailures + 1
	status := acc.Status
	if failures > models.MaxAccountFailures {
		status = models.AccountExpired
	}
	if err := s.store.UpdateAccountValidation(accountID, failures, status, acc.Nickname); err != nil {
		s.logger.Error("recording account failure", "account_id", accountID, "error", err.Error())
		return
	}
	if status == models.AccountExpired && acc.Status != models.AccountExpired {
		s.logger.Warn("account expired after repeated failures", "account_id", accountID, "failures", failures)
	}
}

func extractSecrets(rawCookie string) (sessdata, biliJct string, err error) {
	m := sessdataPattern.FindStringSubmatch(rawCookie)
	if m == nil {
		return "", "", &errors.ErrInvalidCookie{Reason: "SESSDATA not found"}
	}
	sessdata = strings.TrimSpace(m[1])
	if sessdata == "" {
		return "", "", &errors.ErrInvalidCookie{Reason: "SESSDATA is empty"}
	}
	if m := biliJctPattern.FindStringSubmatch(rawCookie); m != nil {
		biliJct = strings.TrimSpace(m[1])
	}
	return sessdata, biliJct, nil
}

func buildCookie(sessdata, biliJct string) string {
	if biliJct == "" {
		return "SESSDATA=" + sessdata
	}
	return "SESSDATA=" + sessdata + "; bili_jct=" + biliJct
}
