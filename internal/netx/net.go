// Package netx fetches media bytes from the short-lived URLs the server
// hands out.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

// ErrTooLarge is returned when the body exceeds the caller's limit.
var ErrTooLarge = errors.New("download exceeds size limit")

// Download GETs url and copies the body into w, stopping with ErrTooLarge
// after limit bytes. A nil client means http.DefaultClient. The URL is
// expected to be self-authorizing, so no credentials are attached.
func Download(ctx context.Context, client *http.Client, url string, w io.Writer, limit int64) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return n, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	if n > limit {
		return n, ErrTooLarge
	}
	return n, nil
}
