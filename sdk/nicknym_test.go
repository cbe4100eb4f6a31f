package sdk

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const armoredKey = "-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nxjMEZ...\n-----END PGP PUBLIC KEY BLOCK-----\n"

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}

func writeServerCert(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "provider.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(path, pemBytes, 0600))
	return path
}

func TestFetchByAddress(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":"alice@example.org","openpgp":` + jsonString(armoredKey) + `}`))
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{})
	res, err := cli.FetchByAddress(context.Background(), "alice@example.org")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.org", res.Address)
	assert.Equal(t, armoredKey, res.OpenPGP)
	assert.Equal(t, url.Values{"address": {"alice@example.org"}}, query)
}

func TestFetchByFingerprint(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"fingerprint":"ABCD","openpgp":` + jsonString(armoredKey) + `}`))
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{})
	res, err := cli.FetchByFingerprint(context.Background(), "ABCD")
	require.NoError(t, err)

	assert.Equal(t, "ABCD", res.Fingerprint)
	assert.Equal(t, url.Values{"fingerprint": {"ABCD"}}, query)
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{})
	_, err := cli.FetchByAddress(context.Background(), "carol@example.org")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
	assert.Contains(t, err.Error(), "404: Key not found. Request: "+srv.URL+"?address=carol%40example.org")
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{})
	_, err := cli.FetchByAddress(context.Background(), "alice@example.org")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errs.ErrKeyNotFound))
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	cli := NewHttpNicknymClient(http.DefaultClient, endpoint, config.Session{})
	_, err := cli.FetchByAddress(context.Background(), "alice@example.org")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errs.ErrKeyNotFound))

	var urlErr *url.Error
	assert.ErrorAs(t, err, &urlErr)
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{})
	_, err := cli.FetchByAddress(context.Background(), "alice@example.org")
	assert.Error(t, err)
}

func TestFetchOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":"alice@example.org","openpgp":"` + strings.Repeat("A", maxKeySize) + `"}`))
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{})
	_, err := cli.FetchByAddress(context.Background(), "alice@example.org")
	assert.ErrorIs(t, err, errs.ErrKeyTooLarge)
}

func TestPutKey(t *testing.T) {
	var (
		method, path, auth, contentType string
		form                            url.Values
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{
		Address:    "alice@example.org",
		UID:        "42",
		Token:      "s3cr3t",
		APIURI:     srv.URL + "/",
		APIVersion: "1",
	})

	err := cli.PutKey(context.Background(), armoredKey)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/1/users/42.json", path)
	assert.Equal(t, "Token token=s3cr3t", auth)
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, armoredKey, form.Get("user[public_key]"))
}

func TestPutKeyUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cli := NewHttpNicknymClient(srv.Client(), srv.URL, config.Session{APIURI: srv.URL, APIVersion: "1", UID: "42"})
	err := cli.PutKey(context.Background(), armoredKey)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestProviderPinnedClient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":"alice@example.org","openpgp":"key"}`))
	}))
	defer srv.Close()

	t.Run("OK/Pinned", func(t *testing.T) {
		client, err := BuildProviderHTTPClient(config.NicknymClient{
			TLSConfig: config.TLSConfig{ProviderCACertFile: writeServerCert(t, srv)},
		}, testLogger())
		require.NoError(t, err)

		res, err := NewHttpNicknymClient(client, srv.URL, config.Session{}).FetchByAddress(context.Background(), "alice@example.org")
		require.NoError(t, err)
		assert.Equal(t, "key", res.OpenPGP)
	})

	t.Run("Err/SystemRoots", func(t *testing.T) {
		client, err := BuildProviderHTTPClient(config.NicknymClient{}, testLogger())
		require.NoError(t, err)

		_, err = NewHttpNicknymClient(client, srv.URL, config.Session{}).FetchByAddress(context.Background(), "alice@example.org")
		require.Error(t, err)
		assert.False(t, errors.Is(err, errs.ErrKeyNotFound))
	})

	t.Run("Err/MissingBundle", func(t *testing.T) {
		_, err := BuildProviderHTTPClient(config.NicknymClient{
			TLSConfig: config.TLSConfig{ProviderCACertFile: filepath.Join(t.TempDir(), "missing.pem")},
		}, testLogger())
		assert.Error(t, err)
	})
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
