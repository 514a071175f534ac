package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRegion  = errors.New("invalid map region")
	ErrUnknownCluster = errors.New("unknown cluster")
)

// CatalogUpdated is published after markets of a state were synced.
type CatalogUpdated struct {
	ID    string    `json:"id"`
	State string    `json:"state"`
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// ClustersComputed is published after a cluster view was produced.
type ClustersComputed struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Region    MapRegion `json:"region"`
	Zoom      int       `json:"zoom"`
	Results   int       `json:"results"`
	Fallback  bool      `json:"fallback"`
	Truncated bool      `json:"truncated"`
	At        time.Time `json:"at"`
}
