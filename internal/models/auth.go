package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access-token payload issued by the identity service.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	CollegeID  string   `json:"college_id"`
	Department string   `json:"department,omitempty"`
	Email      string   `json:"email"`
	FullName   string   `json:"full_name"`
	jwt.RegisteredClaims
}
