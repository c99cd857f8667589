package clients

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

// FetchTimeout bounds every outbound feed or page request.
const FetchTimeout = 20 * time.Second

type HttpClient struct {
	header  http.Header
	cookies []*http.Cookie

	client *http.Client
}

// NewDefaultHttpClient returns a client with the default timeout and at
// most maxRedirects redirects followed per request.
func NewDefaultHttpClient(userAgent string, maxRedirects int) *HttpClient {
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return NewHttpClient(header, []*http.Cookie{}, maxRedirects)
}

func NewHttpClient(header http.Header, cookies []*http.Cookie, maxRedirects int) *HttpClient {
	return &HttpClient{
		header:  header,
		cookies: cookies,
		client: &http.Client{
			Timeout: FetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

func (c *HttpClient) Get(uri string) (*http.Response, error) {
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET failed %w", err)
	}
	req.Header = c.header
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if IsNon200HttpResponse(res) {
		MaybeLogNon200HttpError(res)
		return nil, fmt.Errorf("non 200 response %d for %s", res.StatusCode, uri)
	}

	return res, err
}

func (c *HttpClient) Post(uri string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest("POST", uri, body)
	if err != nil {
		return nil, err
	}
	req.Header = c.header
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if IsNon200HttpResponse(res) {
		MaybeLogNon200HttpError(res)
		return nil, errors.New("non 200 response")
	}

	return res, err
}

func (c *HttpClient) GetHeader() http.Header {
	return c.header
}

// Log http response if the error code is not 2XX
func MaybeLogNon200HttpError(res *http.Response) {
	if IsNon200HttpResponse(res) {
		Logger.LogV2.Error(fmt.Sprintf("non-200 http code: %d", res.StatusCode))
		LogHttpResponseBody(res)
	}
}

func IsNon200HttpResponse(res *http.Response) bool {
	return res.StatusCode >= 300
}

func LogHttpResponseBody(res *http.Response) {
	body, err := io.ReadAll(res.Body)
	if err == nil {
		Logger.LogV2.Debugf("response body is: ", string(body))
	}
}
