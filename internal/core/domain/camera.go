package domain

import (
	"time"

	"camrelay/pkg/rtspurl"
)

type MountType string

const (
	MountCeiling MountType = "ceiling"
	MountWall    MountType = "wall"
	MountDesk    MountType = "desk"
)

func (m MountType) Valid() bool {
	switch m {
	case MountCeiling, MountWall, MountDesk:
		return true
	}
	return false
}

// Camera is a stored camera record. IsDefault is filled from the repository's
// single default pointer and is never persisted on the record itself.
type Camera struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RTSPURL   string    `json:"rtsp_url"`
	Location  string    `json:"location,omitempty"`
	Fisheye   bool      `json:"fisheye"`
	MountType MountType `json:"mount_type"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Target returns the host and RTSP port diagnostics should probe.
func (c *Camera) Target() (string, int) {
	p := rtspurl.Parse(c.RTSPURL)
	return p.Host, p.Port
}

// CameraPatch is an explicit partial update. Nil fields are left untouched.
type CameraPatch struct {
	Name      *string    `json:"name,omitempty"`
	RTSPURL   *string    `json:"rtsp_url,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Fisheye   *bool      `json:"fisheye,omitempty"`
	MountType *MountType `json:"mount_type,omitempty"`
	IsDefault *bool      `json:"is_default,omitempty"`
}

func (p *CameraPatch) Empty() bool {
	return p.Name == nil && p.RTSPURL == nil && p.Location == nil &&
		p.Fisheye == nil && p.MountType == nil && p.IsDefault == nil
}

// Apply copies the record fields of p onto c. IsDefault is resolved by the
// repository together with the default pointer.
func (p *CameraPatch) Apply(c *Camera) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.RTSPURL != nil {
		c.RTSPURL = *p.RTSPURL
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Fisheye != nil {
		c.Fisheye = *p.Fisheye
	}
	if p.MountType != nil {
		c.MountType = *p.MountType
	}
}
