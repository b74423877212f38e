package releasebranch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareMajor(t *testing.T) {
	assert.Negative(t, Compare(major(1), major(2)))
	assert.Positive(t, Compare(major(2), major(1)))
	assert.Zero(t, Compare(major(1), major(1)))
	assert.Negative(t, Compare(majorMinor(1, 9), majorMinor(2, 0)))
}

func TestCompareMinor(t *testing.T) {
	assert.Negative(t, Compare(majorMinor(1, 1), majorMinor(1, 2)))
	assert.Positive(t, Compare(majorMinor(1, 2), majorMinor(1, 1)))
	assert.Zero(t, Compare(majorMinor(1, 1), majorMinor(1, 1)))
}

func TestCompareAbsentMinorIsZero(t *testing.T) {
	assert.Negative(t, Compare(major(1), majorMinor(1, 1)))
	assert.Positive(t, Compare(majorMinor(1, 1), major(1)))
	assert.Zero(t, Compare(major(1), majorMinor(1, 0)))
}

func TestCompareDoesNotOverflow(t *testing.T) {
	assert.Negative(t, Compare(majorMinor(1, 0), majorMinor(1, ^uint64(0))))
	assert.Positive(t, Compare(major(^uint64(0)), major(0)))
}

func TestCompareProperties(t *testing.T) {
	versions := []Version{
		major(0), major(1), majorMinor(1, 0), majorMinor(1, 1), majorMinor(1, 2),
		majorMinor(1, 10), major(2), majorMinor(2, 3),
	}

	for _, a := range versions {
		assert.Zero(t, Compare(a, a), "compare(%s, %s)", a, a)

		for _, b := range versions {
			assert.Equal(t, -Compare(a, b), Compare(b, a), "antisymmetry %s, %s", a, b)
			assert.Equal(t, SameFamily(a, b), SameFamily(b, a), "sameFamily symmetry %s, %s", a, b)

			for _, c := range versions {
				if Compare(a, b) <= 0 && Compare(b, c) <= 0 {
					assert.LessOrEqual(t, Compare(a, c), 0, "transitivity %s, %s, %s", a, b, c)
				}
			}
		}
	}
}

func TestSameFamily(t *testing.T) {
	assert.True(t, SameFamily(major(1), major(1)))
	assert.True(t, SameFamily(majorMinor(1, 1), majorMinor(1, 2)))
	assert.True(t, SameFamily(major(2), majorMinor(2, 5)))

	assert.False(t, SameFamily(major(1), major(2)))
	assert.False(t, SameFamily(majorMinor(1, 9), majorMinor(2, 0)))
}
