package grouping

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/clubtable/tournament-engine/models"
)

var (
	ErrNoPlayers        = errors.New("cannot build groups with zero players")
	ErrGroupSizeTooLow  = errors.New("group size must be at least 2")
	ErrNotEnoughTables  = errors.New("not enough free tables for the required number of groups")
	ErrDuplicatePlayers = errors.New("player list contains duplicates")
)

// Group is one table's worth of players within a round. GroupNumber is
// 1-based and stable for the lifetime of the round. A group of size 1
// is a bye: its sole member advances without playing.
type Group struct {
	GroupNumber int
	TableID     *int
	PlayerIDs   []int
	IsBye       bool
}

type Params struct {
	PlayerIDs []int
	GroupSize int

	// Randomize shuffles the player list with a uniform permutation
	// before partitioning. When false the input order is preserved,
	// which keeps re-runs deterministic.
	Randomize bool

	// Tables, when non-empty, are assigned one per group in ascending
	// SortOrder. Fewer tables than groups is a capacity error.
	Tables []models.Table
}

// Count returns how many groups (and therefore tables) a roster of n
// players needs at the given group size: ceil(n/size).
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Build partitions the players into ceil(N/G) groups of at most G,
// filling groups in order so only the last group carries the remainder.
func Build(params Params) ([]Group, error) {
	n := len(params.PlayerIDs)
	if n == 0 {
		return nil, ErrNoPlayers
	}
	if params.GroupSize < 2 {
		return nil, ErrGroupSizeTooLow
	}

	seen := make(map[int]struct{}, n)
	for _, id := range params.PlayerIDs {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: customer %d", ErrDuplicatePlayers, id)
		}
		seen[id] = struct{}{}
	}

	players := make([]int, n)
	copy(players, params.PlayerIDs)
	if params.Randomize {
		rand.Shuffle(n, func(i, j int) {
			players[i], players[j] = players[j], players[i]
		})
	}

	groupsCount := Count(n, params.GroupSize)

	var tables []models.Table
	if len(params.Tables) > 0 {
		if len(params.Tables) < groupsCount {
			return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughTables, groupsCount, len(params.Tables))
		}
		tables = make([]models.Table, len(params.Tables))
		copy(tables, params.Tables)
		sort.Slice(tables, func(i, j int) bool {
			if tables[i].SortOrder != tables[j].SortOrder {
				return tables[i].SortOrder < tables[j].SortOrder
			}
			return tables[i].ID < tables[j].ID
		})
	}

	groups := make([]Group, 0, groupsCount)
	for g := 0; g < groupsCount; g++ {
		start := g * params.GroupSize
		end := start + params.GroupSize
		if end > n {
			end = n
		}

		group := Group{
			GroupNumber: g + 1,
			PlayerIDs:   players[start:end:end],
			IsBye:       end-start == 1,
		}
		if tables != nil {
			tableID := tables[g].ID
			group.TableID = &tableID
		}
		groups = append(groups, group)
	}

	return groups, nil
}
