package sdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
)

const publicKeyField = "user[public_key]"

type httpNicknymClient struct {
	httpClient *http.Client
	endpoint   string
	session    config.Session
}

// NewHttpNicknymClient builds a directory client. Reads go to endpoint, writes to the
// session API (<api_uri>/<api_version>/users/<uid>.json).
func NewHttpNicknymClient(client *http.Client, endpoint string, session config.Session) services.DirectoryClient {
	return &httpNicknymClient{
		httpClient: client,
		endpoint:   endpoint,
		session:    session,
	}
}

func (cli *httpNicknymClient) FetchByAddress(ctx context.Context, address string) (*models.DirectoryKeyResponse, error) {
	return cli.get(ctx, url.Values{"address": {address}})
}

func (cli *httpNicknymClient) FetchByFingerprint(ctx context.Context, fingerprint string) (*models.DirectoryKeyResponse, error) {
	return cli.get(ctx, url.Values{"fingerprint": {fingerprint}})
}

func (cli *httpNicknymClient) get(ctx context.Context, query url.Values) (*models.DirectoryKeyResponse, error) {
	u, err := url.Parse(cli.endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not parse nicknym URL %s: %w", cli.endpoint, err)
	}
	u.RawQuery = query.Encode()
	reqURL := u.String()

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	r.Header.Add("Accept", "application/json")

	res, err := cli.httpClient.Do(r)
	if err != nil {
		return nil, err
	}

	body, err := readBody(res.Body, reqURL)
	res.Body.Close()
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: 404: Key not found. Request: %s", errs.ErrKeyNotFound, reqURL)
	}

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: res.StatusCode, URL: reqURL, Body: string(body)}
	}

	key, err := ParseJSON[models.DirectoryKeyResponse](body)
	if err != nil {
		return nil, fmt.Errorf("could not decode nicknym response from %s: %w", reqURL, err)
	}

	if key.OpenPGP == "" {
		return nil, fmt.Errorf("%w: empty key material. Request: %s", errs.ErrKeyNotFound, reqURL)
	}

	return &key, nil
}

func (cli *httpNicknymClient) PutKey(ctx context.Context, armoredPublicKey string) error {
	reqURL := fmt.Sprintf("%s/%s/users/%s.json", strings.TrimRight(cli.session.APIURI, "/"), cli.session.APIVersion, cli.session.UID)
	form := url.Values{publicKeyField: {armoredPublicKey}}

	r, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	r.Header.Set("Authorization", fmt.Sprintf("Token token=%s", cli.session.Token))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := cli.httpClient.Do(r)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxKeySize))
	res.Body.Close()
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{StatusCode: res.StatusCode, URL: reqURL, Body: string(body)}
	}

	return nil
}
