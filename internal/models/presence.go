package models

import "time"

type Presence struct {
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId"`
	Status         string    `json:"status"`
	LastSeen       time.Time `json:"lastSeen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
