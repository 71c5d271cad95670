package models

import (
	"strings"
	"time"
)

// Profile is the candidate's onboarding profile, keyed by the identity provider user id.
type Profile struct {
	UserID     string    `json:"userId"`
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phone"`
	Experience string    `json:"experience"`
	LinkedIn   string    `json:"linkedin"`
	Email      string    `json:"email"`
	UpdatedAt  time.Time `json:"updatedAt"`
	VideoURL   string    `json:"videoUrl,omitempty"`
}

// Complete reports whether every field required by onboarding is filled in.
func (p Profile) Complete() bool {
	for _, field := range []string{p.FullName, p.Phone, p.Experience, p.LinkedIn, p.Email} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// Resume records an uploaded resume document. Onboarding only cares whether one exists.
type Resume struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ObjectKey   string    `json:"objectKey"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}
