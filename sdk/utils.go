package sdk

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// maxKeySize bounds response bodies carrying key material.
const maxKeySize = 1 << 20

// readBody reads at most maxKeySize bytes and fails on anything longer.
func readBody(body io.Reader, reqURL string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxKeySize+1))
	if err != nil {
		return nil, err
	}

	if len(data) > maxKeySize {
		return nil, fmt.Errorf("%w: response from %s exceeds %d bytes", errs.ErrKeyTooLarge, reqURL, maxKeySize)
	}

	return data, nil
}

// BuildHTTPClient returns a pooled client trusting the given PEM bundle. An empty
// bundle falls back to the system roots.
func BuildHTTPClient(cfg config.TLSConfig, bundle []byte, timeout time.Duration, logger *logrus.Entry) (*http.Client, error) {
	caPool, err := helpers.LoadCAPool(bundle)
	if err != nil {
		return nil, fmt.Errorf("could not load CA bundle: %w", err)
	}

	client := cleanhttp.DefaultPooledClient()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.Timeout = timeout

	transport := client.Transport.(*http.Transport)
	transport.TLSClientConfig = &tls.Config{
		RootCAs:            caPool,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.InsecureSkipVerify {
		logger.Warnf("TLS verification is disabled")
	}

	return BuildHTTPClientWithTracerLogger(client, logger), nil
}

// BuildProviderHTTPClient trusts the caller supplied provider bundle when present,
// the default bundle otherwise.
func BuildProviderHTTPClient(cfg config.NicknymClient, logger *logrus.Entry) (*http.Client, error) {
	path := cfg.ProviderCACertFile
	if path == "" {
		path = cfg.DefaultCABundle
	}

	var bundle []byte
	if path != "" {
		var err error
		bundle, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read CA bundle %s: %w", path, err)
		}
	}

	return BuildHTTPClient(cfg.TLSConfig, bundle, cfg.Timeout, logger)
}

// BuildCombinedHTTPClient trusts both the default and the provider bundle.
func BuildCombinedHTTPClient(cfg config.NicknymClient, logger *logrus.Entry) (*http.Client, error) {
	bundle, err := helpers.CombinedCABundle(cfg.DefaultCABundle, cfg.ProviderCACertFile)
	if err != nil {
		return nil, err
	}

	return BuildHTTPClient(cfg.TLSConfig, bundle, cfg.Timeout, logger)
}

func BuildHTTPClientWithTracerLogger(cli *http.Client, logger *logrus.Entry) *http.Client {
	transport := http.DefaultTransport
	if cli.Transport != nil {
		transport = cli.Transport
	}

	cli.Transport = loggingRoundTripper{
		transport: transport,
		logger:    logger,
	}

	return cli
}

type loggingRoundTripper struct {
	transport http.RoundTripper
	logger    *logrus.Entry
}

func (lrt loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	traced := lrt.logger.Logger.IsLevelEnabled(logrus.TraceLevel)

	var dReq []byte
	if traced {
		// request bodies carry the session token and armored keys
		dReq, _ = httputil.DumpRequestOut(req, false)
	}

	res, err := lrt.transport.RoundTrip(req)
	if err != nil {
		lrt.logger.Errorf("%s %s: %s", req.Method, req.URL.Redacted(), err)
		return nil, err
	}

	log := lrt.logger.WithField("response", fmt.Sprintf("%s %d: %s", req.Method, res.StatusCode, time.Since(start)))
	log.Debug(req.URL.Redacted())
	if traced {
		dRes, _ := httputil.DumpResponse(res, false)
		log.Tracef("%s\n%s", dReq, dRes)
	}

	return res, nil
}

func ParseJSON[T any](s []byte) (T, error) {
	var r T
	if err := json.Unmarshal(s, &r); err != nil {
		return r, err
	}
	return r, nil
}

// StatusError is returned for non 2xx responses that have no domain meaning.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
