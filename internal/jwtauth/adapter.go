package jwtauth

import (
	"fracmarket/internal/platform/middleware"
)

// Adapter bridges the JWT service to the middleware's validator interface.
type Adapter struct {
	service *JWTService
}

func NewAdapter(service *JWTService) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{Account: claims.Account}, nil
}
