package account

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilitrack/bilitrack/internal/bili"
	"github.com/bilitrack/bilitrack/internal/crypto"
	apperrors "github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/models"
	"github.com/bilitrack/bilitrack/internal/store"
)

type fakeNav struct {
	nav *bili.NavInfo
	err error
}

func (f *fakeNav) Nav(ctx context.Context, cookie string) (*bili.NavInfo, error) {
	return f.nav, f.err
}

type fakeSettings struct {
	store.SettingsStore
	defaultID string
}

func (f *fakeSettings) DefaultAccountID() (string, bool) {
	if f.defaultID == "" || f.defaultID == "null" {
		return "", false
	}
	return f.defaultID, true
}

type validation struct {
	id       string
	failures int
	status   models.AccountStatus
}

type fakeStore struct {
	store.Store
	accounts    map[string]*models.Account
	oldest      *models.Account
	settings    *fakeSettings
	validations []validation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*models.Account),
		settings: &fakeSettings{},
	}
}

func (f *fakeStore) GetAccount(id string) (*models.Account, bool) {
	acc, ok := f.accounts[id]
	return acc, ok
}

func (f *fakeStore) GetAccountByUID(uid string) (*models.Account, bool) {
	for _, acc := range f.accounts {
		if acc.UID == uid {
			return acc, true
		}
	}
	return nil, false
}

func (f *fakeStore) OldestValidAccount() (*models.Account, bool) {
	return f.oldest, f.oldest != nil
}

func (f *fakeStore) SetAccount(acc *models.Account) error {
	f.accounts[acc.ID] = acc
	return nil
}

func (f *fakeStore) Settings() store.SettingsStore { return f.settings }

func (f *fakeStore) UpdateAccountValidation(id string, failures int, status models.AccountStatus, nickname string) error {
	f.validations = append(f.validations, validation{id: id, failures: failures, status: status})
	if acc, ok := f.accounts[id]; ok {
		acc.LastFailures = failures
		acc.Status = status
		acc.Nickname = nickname
	}
	return nil
}

func testKey(t *testing.T) []byte {
	t.Helper()
	hexKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.ParseKey(hexKey)
	require.NoError(t, err)
	return key
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.WithOutput(io.Discard))
}

func sealedAccount(t *testing.T, key []byte, id, uid string, status models.AccountStatus) *models.Account {
	t.Helper()
	sess, err := crypto.Encrypt("sess-"+id, key)
	require.NoError(t, err)
	return &models.Account{
		ID:       id,
		UID:      uid,
		Sessdata: sess,
		Status:   status,
		BoundAt:  time.Now(),
	}
}

func TestBindByCookieSealsSecrets(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	nav := &fakeNav{nav: &bili.NavInfo{IsLogin: true, Mid: 12345, Uname: "tester"}}
	svc := NewService(st, nav, key, testLogger())

	acc, err := svc.BindByCookie(context.Background(), "buvid3=x; SESSDATA=secret-sess; bili_jct=secret-jct; sid=y")
	require.NoError(t, err)

	assert.Equal(t, "12345", acc.UID)
	assert.Equal(t, "tester", acc.Nickname)
	assert.Equal(t, models.AccountValid, acc.Status)
	assert.Equal(t, 0, acc.LastFailures)
	assert.NotEqual(t, "secret-sess", acc.Sessdata)

	sess, err := crypto.Decrypt(acc.Sessdata, key)
	require.NoError(t, err)
	assert.Equal(t, "secret-sess", sess)
	jct, err := crypto.Decrypt(acc.BiliJct, key)
	require.NoError(t, err)
	assert.Equal(t, "secret-jct", jct)
}

func TestBindByCookieRebindKeepsID(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	existing := sealedAccount(t, key, "acc-1", "12345", models.AccountExpired)
	existing.LastFailures = 7
	st.accounts[existing.ID] = existing

	nav := &fakeNav{nav: &bili.NavInfo{IsLogin: true, Mid: 12345, Uname: "tester"}}
	svc := NewService(st, nav, key, testLogger())

	acc, err := svc.BindByCookie(context.Background(), "SESSDATA=fresh")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, models.AccountValid, acc.Status)
	assert.Equal(t, 0, acc.LastFailures)
}

func TestBindByCookieMissingSessdata(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeNav{}, testKey(t), testLogger())

	_, err := svc.BindByCookie(context.Background(), "buvid3=x; sid=y")
	var invalid *apperrors.ErrInvalidCookie
	require.ErrorAs(t, err, &invalid)
}

func TestBindByCookieNotLoggedIn(t *testing.T) {
	nav := &fakeNav{nav: &bili.NavInfo{IsLogin: false}}
	svc := NewService(newFakeStore(), nav, testKey(t), testLogger())

	_, err := svc.BindByCookie(context.Background(), "SESSDATA=stale")
	var invalid *apperrors.ErrInvalidCookie
	require.ErrorAs(t, err, &invalid)
}

func TestGetCookieIncludesBothSecrets(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	acc := sealedAccount(t, key, "acc-1", "1", models.AccountValid)
	jct, err := crypto.Encrypt("jct-1", key)
	require.NoError(t, err)
	acc.BiliJct = jct
	st.accounts[acc.ID] = acc

	svc := NewService(st, &fakeNav{}, key, testLogger())
	cookie, err := svc.GetCookie("acc-1")
	require.NoError(t, err)
	assert.Equal(t, "SESSDATA=sess-acc-1; bili_jct=jct-1", cookie)
}

func TestResolveCookieSkipsUnusableBoundAccount(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	st.accounts["bound"] = sealedAccount(t, key, "bound", "111", models.AccountExpired)
	st.accounts["author"] = sealedAccount(t, key, "author", "222", models.AccountValid)

	svc := NewService(st, &fakeNav{}, key, testLogger())
	task := &models.Task{ID: "t1", AccountID: "bound", AuthorUID: "222"}

	acc, cookie, err := svc.ResolveCookie(task)
	require.NoError(t, err)
	assert.Equal(t, "author", acc.ID)
	assert.Equal(t, "SESSDATA=sess-author", cookie)
}

func TestResolveCookieDefaultThenOldest(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	st.accounts["default"] = sealedAccount(t, key, "default", "333", models.AccountValid)
	st.settings.defaultID = "default"

	svc := NewService(st, &fakeNav{}, key, testLogger())

	acc, _, err := svc.ResolveCookie(&models.Task{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "default", acc.ID)

	// With the default unset the oldest valid account is the last tier.
	st.settings.defaultID = "null"
	st.oldest = sealedAccount(t, key, "oldest", "444", models.AccountValid)
	st.accounts["oldest"] = st.oldest

	acc, _, err = svc.ResolveCookie(&models.Task{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "oldest", acc.ID)
}

func TestResolveCookieNoUsableCredential(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeNav{}, testKey(t), testLogger())

	_, _, err := svc.ResolveCookie(&models.Task{ID: "t9"})
	var noCred *apperrors.ErrNoUsableCredential
	require.ErrorAs(t, err, &noCred)
	assert.Equal(t, "t9", noCred.TaskID)
}

func TestValidateSuccessClearsFailures(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	acc := sealedAccount(t, key, "acc-1", "1", models.AccountValid)
	acc.LastFailures = 3
	st.accounts[acc.ID] = acc

	nav := &fakeNav{nav: &bili.NavInfo{IsLogin: true, Uname: "fresh-name"}}
	svc := NewService(st, nav, key, testLogger())

	require.NoError(t, svc.Validate(context.Background(), "acc-1"))
	require.Len(t, st.validations, 1)
	assert.Equal(t, 0, st.validations[0].failures)
	assert.Equal(t, models.AccountValid, st.validations[0].status)
	assert.Equal(t, "fresh-name", acc.Nickname)
}

func TestValidateFailureIncrementsFailures(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	acc := sealedAccount(t, key, "acc-1", "1", models.AccountValid)
	acc.LastFailures = 2
	st.accounts[acc.ID] = acc

	nav := &fakeNav{err: fmt.Errorf("upstream down")}
	svc := NewService(st, nav, key, testLogger())

	require.Error(t, svc.Validate(context.Background(), "acc-1"))
	require.Len(t, st.validations, 1)
	assert.Equal(t, 3, st.validations[0].failures)
	assert.Equal(t, models.AccountValid, st.validations[0].status)
}

func TestValidateAttributesAuthCodeToCredential(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	acc := sealedAccount(t, key, "acc-1", "1", models.AccountValid)
	st.accounts[acc.ID] = acc

	nav := &fakeNav{err: &apperrors.ErrUpstreamAPI{Endpoint: "/x/web-interface/nav", Code: -101, Message: "not logged in"}}
	svc := NewService(st, nav, key, testLogger())

	err := svc.Validate(context.Background(), "acc-1")
	var rejected *apperrors.ErrCredentialRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "acc-1", rejected.AccountID)
	require.Len(t, st.validations, 1)
	assert.Equal(t, 1, st.validations[0].failures)
}

func TestRecordFailureExpiresPastThreshold(t *testing.T) {
	key := testKey(t)
	st := newFakeStore()
	acc := sealedAccount(t, key, "acc-1", "1", models.AccountValid)
	acc.LastFailures = models.MaxAccountFailures
	st.accounts[acc.ID] = acc

	svc := NewService(st, &fakeNav{}, key, testLogger())
	svc.RecordFailure("acc-1")

	require.Len(t, st.validations, 1)
	assert.Equal(t, models.MaxAccountFailures+1, st.validations[0].failures)
	assert.Equal(t, models.AccountExpired, st.validations[0].status)
	assert.False(t, acc.IsUsable())
}
