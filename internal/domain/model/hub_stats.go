package model

import "time"

type HubStats struct {
	TotalSubscribers int           `json:"total_subscribers"`
	TotalTags        int           `json:"total_tags"`
	Delivered        uint64        `json:"delivered"`
	Dropped          uint64        `json:"dropped"`
	Unrouted         uint64        `json:"unrouted"`
	Uptime           time.Duration `json:"uptime"`
	Tags             []TagStats    `json:"tags,omitempty"`
}

type TagStats struct {
	Tag         string `json:"tag"`
	Subscribers int    `json:"subscribers"`
}

// Totals drops the per-tag table, which names online users and groups.
func (s HubStats) Totals() HubStats {
	s.Tags = nil
	return s
}
