package broadcast

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/edgard/rosterbot/internal/database"
)

// Category identifies one group of recipients. Categories are always resolved
// and dispatched in the order they are declared here.
type Category string

const (
	CategoryTargetMembers  Category = "target_members"
	CategoryTargetChat     Category = "target_chat"
	CategoryNetworkChats   Category = "network_chats"
	CategoryNetworkMembers Category = "network_members"
)

// Direct reports whether recipients in the category are users reached by
// direct message rather than chats.
func (c Category) Direct() bool {
	return c == CategoryTargetMembers || c == CategoryNetworkMembers
}

// Batch is the deduplicated recipient list of one category.
type Batch struct {
	Category Category
	IDs      []int64
}

// BreakdownEntry is one line of the operator preview.
type BreakdownEntry struct {
	Category Category
	Count    int
}

// Plan is the resolved recipient set.
type Plan struct {
	Batches []Batch
}

// Total returns the number of sends the plan requires.
func (p Plan) Total() int {
	total := 0
	for _, b := range p.Batches {
		total += len(b.IDs)
	}
	return total
}

// Breakdown returns the per-category counts in dispatch order.
func (p Plan) Breakdown() []BreakdownEntry {
	entries := make([]BreakdownEntry, 0, len(p.Batches))
	for _, b := range p.Batches {
		entries = append(entries, BreakdownEntry{Category: b.Category, Count: len(b.IDs)})
	}
	return entries
}

// Resolver turns a configuration snapshot into a Plan. It only reads.
type Resolver struct {
	store        database.Store
	targetChatID int64
}

// NewResolver creates a resolver for targetChatID.
func NewResolver(store database.Store, targetChatID int64) *Resolver {
	return &Resolver{store: store, targetChatID: targetChatID}
}

// Resolve computes the recipients of every enabled category. Each enabled
// category contributes a batch, even when it is empty.
func (r *Resolver) Resolve(ctx context.Context, snap Snapshot) (Plan, error) {
	var plan Plan

	var dialogUsers []int64
	if snap.TargetMembers || (snap.Network && snap.Mode == ModeMembersOnly) {
		ids, err := r.store.ListDialogUserIDs(ctx, r.targetChatID)
		if err != nil {
			return Plan{}, fmt.Errorf("failed to list dialog users: %w", err)
		}
		dialogUsers = dedupe(ids)
	}

	if snap.TargetMembers {
		plan.Batches = append(plan.Batches, Batch{Category: CategoryTargetMembers, IDs: dialogUsers})
	}

	if snap.TargetChat {
		plan.Batches = append(plan.Batches, Batch{Category: CategoryTargetChat, IDs: []int64{r.targetChatID}})
	}

	if !snap.Network {
		return plan, nil
	}

	switch snap.Mode {
	case ModeSpecific:
		plan.Batches = append(plan.Batches, Batch{Category: CategoryNetworkChats, IDs: dedupe(snap.Selected)})

	case ModeMembersOnly:
		union := make(map[int64]struct{})
		for _, chatID := range slices.Sorted(maps.Keys(snap.Available)) {
			members, err := r.store.ListChatMemberIDs(ctx, chatID)
			if err != nil {
				return Plan{}, fmt.Errorf("failed to list members of chat %d: %w", chatID, err)
			}
			for _, id := range members {
				union[id] = struct{}{}
			}
		}
		ids := make([]int64, 0, len(dialogUsers))
		for _, id := range dialogUsers {
			if _, ok := union[id]; ok {
				ids = append(ids, id)
			}
		}
		plan.Batches = append(plan.Batches, Batch{Category: CategoryNetworkMembers, IDs: ids})

	default:
		plan.Batches = append(plan.Batches, Batch{Category: CategoryNetworkChats, IDs: r.networkChatIDs(snap)})
	}

	return plan, nil
}

// networkChatIDs returns the available chats. The target chat is left out when
// it already receives the post through the target-chat flag.
func (r *Resolver) networkChatIDs(snap Snapshot) []int64 {
	ids := make([]int64, 0, len(snap.Available))
	for _, id := range slices.Sorted(maps.Keys(snap.Available)) {
		if !snap.TargetChat || id != r.targetChatID {
			ids = append(ids, id)
		}
	}
	return ids
}

func dedupe(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
