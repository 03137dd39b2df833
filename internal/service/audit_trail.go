package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditEntry struct {
	actor      *models.JWTClaims
	action     string
	resource   string
	resourceID string
	before     interface{}
	after      interface{}
}

// recordAudit writes an audit row. Failures are logged and never surface to the caller.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, agent string, entry auditEntry) {
	if audit == nil {
		return
	}
	var userID *string
	if entry.actor != nil {
		userID = &entry.actor.UserID
	}
	resourceID := entry.resourceID
	log := &models.AuditLog{
		UserID:     userID,
		Action:     entry.action,
		Resource:   entry.resource,
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  agent,
	}
	if entry.before != nil {
		log.OldValues, _ = json.Marshal(entry.before)
	}
	if entry.after != nil {
		log.NewValues, _ = json.Marshal(entry.after)
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit", zap.String("action", entry.action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

// sameCollege reports whether claims may act on a record of collegeID.
func sameCollege(claims *models.JWTClaims, collegeID string) bool {
	if claims == nil {
		return false
	}
	return claims.Role == models.RoleSuperAdmin || claims.CollegeID == collegeID
}
