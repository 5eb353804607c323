package git

import (
	"context"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

var fallbackBranches = []plumbing.ReferenceName{
	plumbing.NewBranchReferenceName("main"),
	plumbing.NewBranchReferenceName("master"),
}

// RemoteHead is the default branch tip advertised by a remote.
type RemoteHead struct {
	Branch plumbing.ReferenceName
	Hash   string
}

// probe lists the remote's references without fetching objects and resolves
// its default branch.
func probe(ctx context.Context, rawURL string, auth transport.AuthMethod) (*RemoteHead, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: gogit.DefaultRemoteName,
		URLs: []string{rawURL},
	})

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: auth})
	if err != nil {
		return nil, err
	}

	ref, err := defaultBranch(refs)
	if err != nil {
		return nil, err
	}

	return &RemoteHead{Branch: ref.Name(), Hash: ref.Hash().String()}, nil
}

// defaultBranch resolves the branch a clone would check out: the target of
// the HEAD symref, then main, then master, then the first branch by name.
func defaultBranch(refs []*plumbing.Reference) (*plumbing.Reference, error) {
	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))

	var branches []*plumbing.Reference

	for _, ref := range refs {
		byName[ref.Name()] = ref

		if ref.Name().IsBranch() && ref.Type() == plumbing.HashReference {
			branches = append(branches, ref)
		}
	}

	if head, ok := byName[plumbing.HEAD]; ok && head.Type() == plumbing.SymbolicReference {
		if target, ok := byName[head.Target()]; ok && target.Type() == plumbing.HashReference {
			return target, nil
		}
	}

	for _, name := range fallbackBranches {
		if ref, ok := byName[name]; ok && ref.Type() == plumbing.HashReference {
			return ref, nil
		}
	}

	if len(branches) == 0 {
		return nil, ErrNoRemoteBranch
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Name() < branches[j].Name() })

	return branches[0], nil
}
