package letsencrypt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pelletier/go-toml/v2"
)

type requestsDocument struct {
	Requests []CertificateRequest `toml:"requests"`
}

// EncodeRequests renders requests as a canonical TOML document.
// Nil and empty lists encode identically.
func EncodeRequests(requests []CertificateRequest) ([]byte, error) {
	doc := requestsDocument{Requests: make([]CertificateRequest, 0, len(requests))}
	for _, r := range requests {
		if r.Domains == nil {
			r.Domains = []string{}
		}
		doc.Requests = append(doc.Requests, r)
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal certificate requests: %w", err)
	}
	return data, nil
}

func DecodeRequests(data []byte) ([]CertificateRequest, error) {
	var doc requestsDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal certificate requests: %w", err)
	}
	return doc.Requests, nil
}

func requestsHash(encoded []byte) []byte {
	return []byte(strconv.FormatUint(xxhash.Sum64(encoded), 16))
}

// SetRequestedCertificates replaces the stored request list. Each request
// yields one certificate covering all of its domains.
//
// Registration is re-armed and the certificate-requested flag is cycled on
// every call, except when the list is empty and was already empty.
func (c *Charm) SetRequestedCertificates(ctx context.Context, requests []CertificateRequest) error {
	for i, r := range requests {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("certificate request %d: %w", i, err)
		}
	}

	encoded, err := EncodeRequests(requests)
	if err != nil {
		return err
	}
	sum := requestsHash(encoded)

	prev, err := c.store.Get(ctx, KeyRequestsHash)
	if errors.Is(err, ErrNotFound) {
		// A unit that never stored requests has, in effect, an empty list:
		// a first empty call changes nothing.
		empty, err := EncodeRequests(nil)
		if err != nil {
			return err
		}
		prev = requestsHash(empty)
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", KeyRequestsHash, err)
	}

	if err := c.store.Set(ctx, KeyRequestsHash, sum); err != nil {
		return fmt.Errorf("failed to save %s: %w", KeyRequestsHash, err)
	}

	if bytes.Equal(prev, sum) && len(requests) == 0 {
		c.logger.Debug("Certificate requests unchanged and empty, skipping")
		return nil
	}

	if err := c.store.Set(ctx, KeyRequests, encoded); err != nil {
		return fmt.Errorf("failed to save %s: %w", KeyRequests, err)
	}
	if _, err := c.transition(ctx, TriggerInvalidate); err != nil {
		return err
	}

	// Cleared first so anything watching the flag sees a fresh request.
	if err := c.store.ClearFlag(ctx, FlagCertRequested); err != nil {
		return fmt.Errorf("failed to clear %s: %w", FlagCertRequested, err)
	}
	if err := c.store.SetFlag(ctx, FlagCertRequested); err != nil {
		return fmt.Errorf("failed to set %s: %w", FlagCertRequested, err)
	}

	c.logger.Info("Certificate requests updated", "requests", len(requests))
	return nil
}

// RequestedCertificates returns the stored request list.
func (c *Charm) RequestedCertificates(ctx context.Context) ([]CertificateRequest, error) {
	return LoadRequests(ctx, c.store)
}

// LoadRequests returns the request list persisted in store, nil if none.
func LoadRequests(ctx context.Context, store Store) ([]CertificateRequest, error) {
	data, err := store.Get(ctx, KeyRequests)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KeyRequests, err)
	}
	return DecodeRequests(data)
}
