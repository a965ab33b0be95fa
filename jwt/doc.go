// Package jwt issues and verifies access/refresh token pairs for the local
// identity provider and reads token lifetimes for refresh rotation.
package jwt
