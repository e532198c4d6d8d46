package pimalink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"time"

	logp "github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "pimalink",
})

// SetLogLevel sets the level of the client's logger.
func SetLogLevel(level logp.Level) {
	log.SetLevel(level)
}

const (
	// Host is the PIMA cloud endpoint. Its certificate does not validate,
	// so it is the one host we skip verification for.
	Host = "application.pimalink.com"

	DefaultBaseURL = "https://" + Host + ":443"
	defaultTimeout = 30 * time.Second
)

const (
	pathSetWebUserDetails = "/api/WebUser/SetWebUserDetails"
	pathConfig            = "/api/WebUser/Config/"
	pathPair              = "/api/WebUser/Pair"
	pathUnPair            = "/api/WebUser/UnPair"
	pathGetPairEntities   = "/api/WebUser/GetPairEntities"
	pathGetNotifications  = "/api/WebUser/GetNotifications"
	pathAuthenticate      = "/api/Panel/Authenticate"
	pathSetGeneralStatus  = "/api/Panel/SetGeneralStatus"
	pathDisconnect        = "/api/Panel/Disconnect"
)

// RequestHook is called after every request with its path, the status code
// (0 when there was no response) and the transport error, if any.
type RequestHook func(path string, status int, err error)

type Option func(*Client)

// WithBaseURL points the client at another server, tests mostly.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(url)
	}
}

// WithTimeout sets the timeout of each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func WithRequestHook(hook RequestHook) Option {
	return func(c *Client) {
		c.hook = hook
	}
}

// Client talks to the PIMA cloud on behalf of one web user.
type Client struct {
	http      *resty.Client
	webUserID Identity
	hook      RequestHook
}

func New(webUserID Identity, options ...Option) *Client {
	r := resty.New().
		SetBaseURL(DefaultBaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(defaultTimeout).
		SetTLSClientConfig(tlsConfig(Host))
	cli := &Client{
		http:      r,
		webUserID: webUserID,
	}
	for _, option := range options {
		option(cli)
	}
	return cli
}

// WebUserID returns the identity the client sends in every header.
func (c *Client) WebUserID() Identity {
	return c.webUserID
}

// post sends the envelope to path. A nil error means the server answered,
// whatever the status code.
func (c *Client) post(ctx context.Context, path string, env envelope) (reply, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(env).
		Post(path)
	if err != nil {
		log.Debug("request failed", "path", path, "err", err)
		c.observe(path, 0, err)
		return reply{Path: path}, &TransportError{Path: path, Err: err}
	}
	log.Debug("request", "path", path, "status", resp.StatusCode())
	c.observe(path, resp.StatusCode(), nil)
	return reply{
		Path:       path,
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}, nil
}

func (c *Client) observe(path string, status int, err error) {
	if c.hook != nil {
		c.hook(path, status, err)
	}
}

// tlsConfig verifies certificates as usual, except for the given host,
// which is accepted as is.
func tlsConfig(trusted string) *tls.Config {
	return &tls.Config{
		// verification is done in VerifyConnection instead.
		InsecureSkipVerify: true, //nolint:gosec
		VerifyConnection: func(cs tls.ConnectionState) error {
			if cs.ServerName == trusted {
				return nil
			}
			if len(cs.PeerCertificates) == 0 {
				return errors.New("tls: no peer certificates")
			}
			opts := x509.VerifyOptions{
				DNSName:       cs.ServerName,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		},
	}
}
