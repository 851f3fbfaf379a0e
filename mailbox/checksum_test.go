package mailbox

import "testing"

func TestChecksum(t *testing.T) {
	testCases := []struct {
		words    []uint32
		expected uint32
	}{
		{words: []uint32{0x1, 0x2, 0x3}, expected: 0x0},
		{words: []uint32{0xA, 0xA}, expected: 0x0},
		{words: []uint32{0xDEADBEEF}, expected: 0xDEADBEEF},
		{words: []uint32{0x17000106, 0x00000001, 0x80000000}, expected: 0x97000107},
		{words: nil, expected: 0},
	}

	for i, tc := range testCases {
		if got := Checksum(tc.words); got != tc.expected {
			t.Errorf("Test case %d: Checksum(%#x) = %#08x, expected %#08x", i, tc.words, got, tc.expected)
		}
	}
}
