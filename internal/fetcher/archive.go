package fetcher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// archiveClient resolves the latest public-archive snapshot for a URL.
// Responses through this tier are marked so downstream confidence drops.
type archiveClient struct {
	httpClient   *http.Client
	availability string
}

const defaultAvailabilityEndpoint = "https://archive.org/wayback/available"

type availabilityResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

func newArchiveClient(httpClient *http.Client) *archiveClient {
	return &archiveClient{
		httpClient:   httpClient,
		availability: defaultAvailabilityEndpoint,
	}
}

// snapshotURL asks the availability API for the newest capture of target.
func (a *archiveClient) snapshotURL(target url.URL) (*url.URL, *FetchError) {
	query := url.Values{"url": []string{target.String()}}
	resp, err := a.httpClient.Get(a.availability + "?" + query.Encode())
	if err != nil {
		return nil, &FetchError{
			Message:   fmt.Sprintf("availability lookup: %v", err),
			Retryable: false,
			Cause:     ErrCauseNoArchiveSnapshot,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Message:    fmt.Sprintf("availability lookup status %d", resp.StatusCode),
			Retryable:  false,
			Cause:      ErrCauseNoArchiveSnapshot,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseNoArchiveSnapshot,
		}
	}

	var avail availabilityResponse
	if err := json.Unmarshal(body, &avail); err != nil {
		return nil, &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseNoArchiveSnapshot,
		}
	}
	closest := avail.ArchivedSnapshots.Closest
	if !closest.Available || closest.URL == "" {
		return nil, &FetchError{
			Message:   fmt.Sprintf("no snapshot for %s", target.String()),
			Retryable: false,
			Cause:     ErrCauseNoArchiveSnapshot,
		}
	}
	snapshot, err := url.Parse(closest.URL)
	if err != nil {
		return nil, &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseNoArchiveSnapshot,
		}
	}
	return snapshot, nil
}
