package access

import "github.com/BatmanBruc/club-membership-bot/types"

// Admins is the fixed set of privileged ids. Creators are admins too; both
// receive review prompts.
type Admins struct {
	ids   []int64
	index map[int64]bool
}

func NewAdmins(adminIDs, creatorIDs []int64) *Admins {
	a := &Admins{index: make(map[int64]bool)}
	for _, list := range [][]int64{adminIDs, creatorIDs} {
		for _, id := range list {
			if id == 0 || a.index[id] {
				continue
			}
			a.index[id] = true
			a.ids = append(a.ids, id)
		}
	}
	return a
}

func (a *Admins) IsAdmin(userID int64) bool {
	return a != nil && a.index[userID]
}

// IDs returns the admins in configuration order.
func (a *Admins) IDs() []int64 {
	if a == nil {
		return nil
	}
	out := make([]int64, len(a.ids))
	copy(out, a.ids)
	return out
}

// Require returns types.ErrUnauthorized unless userID is an admin.
func (a *Admins) Require(userID int64) error {
	if !a.IsAdmin(userID) {
		return types.ErrUnauthorized
	}
	return nil
}
