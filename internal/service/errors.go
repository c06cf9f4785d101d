package service

import "errors"

var (
	ErrTokenUndecodable   = errors.New("token undecodable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshRejected    = errors.New("refresh rejected")
	ErrEmptyAccessToken   = errors.New("empty access token")
)
