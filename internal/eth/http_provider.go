package eth

import (
	"bytes"
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tokenscope/tokenscope/internal/logging"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// httpProvider is a minimal JSON-RPC client for Ethereum endpoints.
// It intentionally leaves rate limiting to wrappers (RLProvider).
type httpProvider struct {
	endpoint    string
	providerLbl string
	hc          httpDoer
	maxRetries  int
	backoffBase time.Duration
	codeCache   *codeCache
}

// NewHTTPProvider constructs a JSON-RPC provider using the given http.Client
// (or a default one if nil).
func NewHTTPProvider(endpoint string, client *http.Client) (Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("empty endpoint")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpProvider{
		endpoint:    endpoint,
		providerLbl: deriveProviderLabel(endpoint),
		hc:          client,
		maxRetries:  2,
		backoffBase: 100 * time.Millisecond,
		codeCache:   newCodeCache(defaultCodeCacheSize, defaultCodeCacheTTL),
	}, nil
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

const (
	defaultCodeCacheSize = 1024
	defaultCodeCacheTTL  = 15 * time.Minute
)

type codeCacheEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// codeCache is an LRU with TTL for fetched bytecode. Resolution revisits the
// same implementation address from many proxies, so hits are common.
type codeCache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	entries map[string]*list.Element
	ordered *list.List
}

func newCodeCache(max int, ttl time.Duration) *codeCache {
	if max <= 0 {
		max = defaultCodeCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCodeCacheTTL
	}
	return &codeCache{
		max:     max,
		ttl:     ttl,
		entries: make(map[string]*list.Element, max),
		ordered: list.New(),
	}
}

func (c *codeCache) get(addr string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[addr]; ok {
		e := el.Value.(*codeCacheEntry)
		if !now.Before(e.expiresAt) {
			c.removeElement(el)
			return "", false
		}
		c.ordered.MoveToFront(el)
		return e.value, true
	}
	return "", false
}

func (c *codeCache) add(addr, value string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[addr]; ok {
		e := el.Value.(*codeCacheEntry)
		e.value = value
		e.expiresAt = now.Add(c.ttl)
		c.ordered.MoveToFront(el)
		return
	}
	entry := &codeCacheEntry{key: addr, value: value, expiresAt: now.Add(c.ttl)}
	el := c.ordered.PushFront(entry)
	c.entries[addr] = el
	c.evict(now)
}

func (c *codeCache) evict(now time.Time) {
	if c.ordered.Len() == 0 {
		return
	}
	for el := c.ordered.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*codeCacheEntry)
		if now.Before(e.expiresAt) {
			break
		}
		c.removeElement(el)
	}
	for c.ordered.Len() > c.max {
		el := c.ordered.Back()
		c.removeElement(el)
	}
}

func (c *codeCache) removeElement(el *list.Element) {
	entry := el.Value.(*codeCacheEntry)
	delete(c.entries, entry.key)
	c.ordered.Remove(el)
}

func deriveProviderLabel(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if u, err := url.Parse(endpoint); err == nil {
		u.User = nil
		if u.Host != "" {
			return u.Host
		}
		if u.Scheme == "" {
			return endpoint
		}
		return u.String()
	}
	return endpoint
}

func (p *httpProvider) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	reqBody, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	var lastErr error
	attempts := p.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := p.hc.Do(req)
		if err != nil {
			lastErr = err
		} else {
			func() {
				defer func() {
					_ = resp.Body.Close()
				}()
				if resp.StatusCode/100 != 2 {
					b, _ := io.ReadAll(resp.Body)
					lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
				} else {
					var rr rpcResponse
					if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
						lastErr = err
					} else if rr.Error != nil {
						// Surface JSON-RPC errors; non-retriable by default (HTTP 200)
						lastErr = fmt.Errorf("rpc %d: %s", rr.Error.Code, rr.Error.Message)
						return
					} else {
						if out != nil {
							lastErr = json.Unmarshal(rr.Result, out)
						} else {
							lastErr = nil
						}
					}
				}
			}()
			if lastErr == nil {
				return nil
			}
			// For non-2xx with 5xx or 429, retry; else break
			if resp != nil {
				if sc := resp.StatusCode; sc != 429 && sc < 500 {
					break
				}
			}
		}
		// Backoff before next attempt
		if attempt < attempts-1 {
			d := p.backoffBase * (1 << attempt)
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return lastErr
}

// hexToUint64 parses an Ethereum hex quantity (e.g., "0x2a") into uint64.
func hexToUint64(s string) (uint64, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
		return 0, fmt.Errorf("invalid hex quantity: %q", s)
	}
	return v, nil
}

func (p *httpProvider) BlockNumber(ctx context.Context) (uint64, error) {
	var res string
	if err := p.call(ctx, "eth_blockNumber", []interface{}{}, &res); err != nil {
		return 0, err
	}
	return hexToUint64(res)
}

// GetCode fetches the deployed bytecode at address, caching results: proxy
// resolution revisits implementations, and bytecode only changes on
// self-destruct or a redeploy.
func (p *httpProvider) GetCode(ctx context.Context, address string) (string, error) {
	key := strings.ToLower(address)
	if p.codeCache != nil {
		if code, ok := p.codeCache.get(key, time.Now()); ok {
			return code, nil
		}
	}
	start := time.Now()
	var code string
	if err := p.call(ctx, "eth_getCode", []interface{}{address, "latest"}, &code); err != nil {
		return "", err
	}
	logging.Logger().Debug("get_code",
		"component", "eth.http_provider",
		"provider", p.providerLbl,
		"address", key,
		"code_bytes", len(code)/2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if p.codeCache != nil {
		p.codeCache.add(key, code, time.Now())
	}
	return code, nil
}

func (p *httpProvider) GetStorageAt(ctx context.Context, address, slot string) (string, error) {
	var word string
	if err := p.call(ctx, "eth_getStorageAt", []interface{}{address, slot, "latest"}, &word); err != nil {
		return "", err
	}
	return word, nil
}

func (p *httpProvider) Call(ctx context.Context, address, data string) (string, error) {
	params := []interface{}{
		map[string]interface{}{"to": address, "data": data},
		"latest",
	}
	var res string
	if err := p.call(ctx, "eth_call", params, &res); err != nil {
		return "", err
	}
	return res, nil
}
