package engine

import (
	"time"

	"tollgate/internal/models"
)

// EffectiveOverride returns the override mode in force at an instant. A
// temporary override whose expiry has been reached projects to none; the
// persisted mode field is never rewritten by this lapse, it is purely a
// read-time projection.
func EffectiveOverride(c *models.TimeCondition, at time.Time) models.OverrideMode {
	if c.OverrideMode == models.OverrideTemporary &&
		c.OverrideExpires != nil && !at.Before(*c.OverrideExpires) {
		return models.OverrideNone
	}
	if c.OverrideMode == "" {
		return models.OverrideNone
	}
	return c.OverrideMode
}
