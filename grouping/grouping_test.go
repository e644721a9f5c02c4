package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubtable/tournament-engine/models"
)

func playerRange(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func TestCount(t *testing.T) {
	testCases := []struct {
		name     string
		players  int
		size     int
		expected int
	}{
		{"exact fit", 16, 4, 4},
		{"heads up bracket", 16, 2, 8},
		{"remainder group", 5, 4, 2},
		{"single group", 3, 4, 1},
		{"two players", 2, 2, 1},
		{"zero players", 0, 4, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Count(tc.players, tc.size))
		})
	}
}

func TestBuild_ExactPartition(t *testing.T) {
	groups, err := Build(Params{PlayerIDs: playerRange(16), GroupSize: 4})
	require.NoError(t, err)
	require.Len(t, groups, 4)

	for i, g := range groups {
		assert.Equal(t, i+1, g.GroupNumber)
		assert.Len(t, g.PlayerIDs, 4)
		assert.False(t, g.IsBye)
		assert.Nil(t, g.TableID)
	}
}

func TestBuild_RemainderBecomesLastGroup(t *testing.T) {
	groups, err := Build(Params{PlayerIDs: playerRange(5), GroupSize: 4})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, []int{1, 2, 3, 4}, groups[0].PlayerIDs)
	assert.False(t, groups[0].IsBye)

	assert.Equal(t, []int{5}, groups[1].PlayerIDs)
	assert.True(t, groups[1].IsBye, "a group of one is a bye")
}

func TestBuild_DeterministicWithoutRandomize(t *testing.T) {
	first, err := Build(Params{PlayerIDs: playerRange(10), GroupSize: 3})
	require.NoError(t, err)
	second, err := Build(Params{PlayerIDs: playerRange(10), GroupSize: 3})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Input order preserved within and across groups.
	assert.Equal(t, []int{1, 2, 3}, first[0].PlayerIDs)
	assert.Equal(t, []int{10}, first[3].PlayerIDs)
}

func TestBuild_ShufflePreservesRoster(t *testing.T) {
	input := playerRange(17)
	groups, err := Build(Params{PlayerIDs: input, GroupSize: 4, Randomize: true})
	require.NoError(t, err)
	require.Len(t, groups, 5)

	seen := make(map[int]int)
	total := 0
	for _, g := range groups {
		assert.LessOrEqual(t, len(g.PlayerIDs), 4)
		for _, id := range g.PlayerIDs {
			seen[id]++
			total++
		}
	}
	assert.Equal(t, len(input), total)
	for _, id := range input {
		assert.Equal(t, 1, seen[id], "player %d must appear exactly once", id)
	}
}

func TestBuild_ShuffleDoesNotMutateInput(t *testing.T) {
	input := playerRange(12)
	_, err := Build(Params{PlayerIDs: input, GroupSize: 4, Randomize: true})
	require.NoError(t, err)
	assert.Equal(t, playerRange(12), input)
}

func TestBuild_TablesAssignedBySortOrder(t *testing.T) {
	tables := []models.Table{
		{ID: 7, Label: "Back room", SortOrder: 3},
		{ID: 2, Label: "Window", SortOrder: 1},
		{ID: 5, Label: "Center", SortOrder: 2},
	}

	groups, err := Build(Params{PlayerIDs: playerRange(6), GroupSize: 3, Tables: tables})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	require.NotNil(t, groups[0].TableID)
	require.NotNil(t, groups[1].TableID)
	assert.Equal(t, 2, *groups[0].TableID)
	assert.Equal(t, 5, *groups[1].TableID)
}

func TestBuild_NotEnoughTables(t *testing.T) {
	tables := []models.Table{{ID: 1, SortOrder: 1}}

	_, err := Build(Params{PlayerIDs: playerRange(8), GroupSize: 4, Tables: tables})
	assert.ErrorIs(t, err, ErrNotEnoughTables)
}

func TestBuild_InputValidation(t *testing.T) {
	_, err := Build(Params{PlayerIDs: nil, GroupSize: 4})
	assert.ErrorIs(t, err, ErrNoPlayers)

	_, err = Build(Params{PlayerIDs: playerRange(4), GroupSize: 1})
	assert.ErrorIs(t, err, ErrGroupSizeTooLow)

	_, err = Build(Params{PlayerIDs: []int{1, 2, 2, 3}, GroupSize: 2})
	assert.ErrorIs(t, err, ErrDuplicatePlayers)
}
