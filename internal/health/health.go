package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mylivetv/catalogd/internal/httpclient"
)

// CheckSource fetches a playlist URL once and reports whether the upstream is
// reachable. Some static hosts don't support HEAD; use GET and discard the
// body.
func CheckSource(ctx context.Context, playlistURL string) error {
	if playlistURL == "" {
		return fmt.Errorf("no playlist URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpclient.WithTimeout(15 * time.Second).Do(req)
	if err != nil {
		return fmt.Errorf("source unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source returned HTTP %d", resp.StatusCode)
	}
	return nil
}
