package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFillPopulatesZeroFields(t *testing.T) {
	filled := Fill(Config{})

	require.Equal(t, Default(), filled)
}

func TestFillPreservesExplicitValues(t *testing.T) {
	filled := Fill(Config{Port: 9443, LogLevel: "debug"})

	require.Equal(t, 9443, filled.Port)
	require.Equal(t, "debug", filled.LogLevel)
	require.Equal(t, Default().ThreadNum, filled.ThreadNum)
}

func TestFillPreservesExplicitCORSAllowList(t *testing.T) {
	filled := Fill(Config{CORS: CORS{AllowedOrigins: []string{"https://only.example"}}})

	require.Equal(t, []string{"https://only.example"}, filled.CORS.AllowedOrigins)
	require.Equal(t, Default().CORS.AllowedMethods, filled.CORS.AllowedMethods)
}
