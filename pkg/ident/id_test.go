package ident_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/pkg/ident"
)

func TestBuildRoundTripPriorityAndSA(t *testing.T) {
	pgns := []uint32{0x000FE, 0x121FE, 0x116FE, 0x021FE, 0x028FE}
	for _, pgn := range pgns {
		for priority := uint8(0); priority < 8; priority++ {
			for sa := 0; sa < 256; sa += 37 {
				id := ident.Build(pgn, uint8(sa), 0xFE, priority)
				require.Equal(t, priority, ident.ExtractPriority(id))
				require.Equal(t, uint8(sa), ident.ExtractSA(id))
			}
		}
	}
}

func TestExtractPGNRoundTrip(t *testing.T) {
	pgns := []uint32{0x000FE, 0x121FE, 0x116FE, 0x021FE, 0x028FE, 0x12EFE}
	for _, pgn := range pgns {
		for sa := 0; sa < 256; sa += 53 {
			id := ident.Build(pgn, uint8(sa), 0xFE, 3)
			require.Equal(t, pgn, ident.ExtractPGN(id))
		}
	}
}

func TestNormalizeForDBCIdempotent(t *testing.T) {
	ids := []uint32{
		0x123,                         // standard 11-bit
		ident.Build(0x121FE, 7, 0x20, 3), // PDU1
		ident.Build(0x1FEFE, 7, 0xFE, 6), // PDU2
	}
	for _, id := range ids {
		n1 := ident.NormalizeForDBC(id)
		n2 := ident.NormalizeForDBC(n1)
		require.Equal(t, n1, n2)
	}
}

func TestNormalizeForDBCStandardPassThrough(t *testing.T) {
	require.Equal(t, uint32(0x123), ident.NormalizeForDBC(0x123))
	require.Equal(t, uint32(0), ident.NormalizeForDBC(0))
}

func TestNormalizeForDBCPDU1WildcardsDAandSA(t *testing.T) {
	id := ident.Build(0x121FE, 0x55, 0x20, 3)
	n := ident.NormalizeForDBC(id)
	require.Equal(t, ident.ExtendedFrameBit, n&ident.ExtendedFrameBit)
	require.Equal(t, uint8(0xFE), uint8(n&0xFF))
	require.Equal(t, uint8(0xFE), uint8((n>>8)&0xFF))
}

func TestNormalizeForDBCPDU2WildcardsOnlySA(t *testing.T) {
	id := ident.Build(0x1FE34, 0x55, 0xFE, 3)
	n := ident.NormalizeForDBC(id)
	require.Equal(t, ident.ExtendedFrameBit, n&ident.ExtendedFrameBit)
	require.Equal(t, uint8(0xFE), uint8(n&0xFF))
	require.Equal(t, uint8(0x34), uint8((n>>8)&0xFF))
}

func TestPDU2TieBreakAtPF0xF0(t *testing.T) {
	id := ident.Build(0x1F0FE, 0x10, 0x20, 3)
	require.False(t, ident.IsPDU1(id))
}
