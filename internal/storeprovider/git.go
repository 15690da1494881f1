package storeprovider

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/inkbound/novelhost/internal/errors"
)

// RefKind selects which git ref a GitProvider tracks.
type RefKind int

const (
	RefDefault RefKind = iota
	RefBranch
	RefTag
	RefCommit
)

// Ref names the git ref a GitProvider should fast-forward to on sync.
type Ref struct {
	Kind RefKind
	Name string // branch/tag name or commit SHA; unused for RefDefault
}

// AuthKind selects a GitProvider's authentication method.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthUserPass
	AuthToken
	AuthSSHKey
)

// Auth holds the credentials for a GitProvider, interpreted per Kind.
type Auth struct {
	Kind     AuthKind
	Username string
	Password string // AuthUserPass
	Token    string // AuthToken (used as the HTTP password with "x-access-token" or the given Username)
	SSHKeyPEM []byte // AuthSSHKey
	SSHUser   string // AuthSSHKey, defaults to "git"
}

func (a Auth) method() (transport.AuthMethod, error) {
	switch a.Kind {
	case AuthNone:
		return nil, nil
	case AuthUserPass:
		return &githttp.BasicAuth{Username: a.Username, Password: a.Password}, nil
	case AuthToken:
		user := a.Username
		if user == "" {
			user = "x-access-token"
		}
		return &githttp.BasicAuth{Username: user, Password: a.Token}, nil
	case AuthSSHKey:
		user := a.SSHUser
		if user == "" {
			user = "git"
		}
		keys, err := gitssh.NewPublicKeys(user, a.SSHKeyPEM, "")
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIOOperation, "parse ssh key")
		}
		return keys, nil
	default:
		return nil, errors.NewError(errors.CodeInvalidConfig, "unrecognized auth kind")
	}
}

// GitProvider clones a repository into dir on first use, then fetches
// and fast-forwards to Ref on subsequent syncs.
type GitProvider struct {
	url  string
	ref  Ref
	auth Auth
	ttl  time.Duration

	mu       sync.Mutex
	lastSync time.Time
}

// NewGit builds a GitProvider tracking ref with the given auth, treating
// a worktree as stale once ttl has elapsed since the last successful
// sync (0 disables TTL-based staleness, relying only on "missing").
func NewGit(url string, ref Ref, auth Auth, ttl time.Duration) *GitProvider {
	return &GitProvider{url: url, ref: ref, auth: auth, ttl: ttl}
}

// NeedsSync implements Provider: true if dir has no working tree yet, or
// the TTL has elapsed since the last sync.
func (p *GitProvider) NeedsSync(dir string) bool {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return true
	}
	if _, err := os.Stat(dir + "/.git"); err != nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ttl <= 0 {
		return false
	}
	return time.Since(p.lastSync) >= p.ttl
}

// Sync implements Provider.
func (p *GitProvider) Sync(ctx context.Context, dir string) (*SyncResult, error) {
	authMethod, err := p.auth.method()
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:  p.url,
			Auth: authMethod,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIOOperation, "clone extension store repository")
		}
		result.Updated = true
		result.Changes = append(result.Changes, "initial clone")
	} else {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIOOperation, "open repository worktree")
		}
		fetchErr := repo.FetchContext(ctx, &git.FetchOptions{Auth: authMethod})
		if fetchErr != nil && fetchErr != git.NoErrAlreadyUpToDate {
			return nil, errors.Wrap(fetchErr, errors.CodeIOOperation, "fetch extension store repository")
		}

		target, err := p.resolveTarget(repo)
		if err != nil {
			return nil, err
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: target, Force: true}); err != nil {
			return nil, errors.Wrap(err, errors.CodeIOOperation, "checkout ref")
		}
		if fetchErr == git.NoErrAlreadyUpToDate {
			result.Updated = false
		} else {
			result.Updated = true
			result.Changes = append(result.Changes, fmt.Sprintf("fast-forwarded to %s", target.String()[:12]))
		}
	}

	result.CompletedAt = time.Now()
	p.mu.Lock()
	p.lastSync = result.CompletedAt
	p.mu.Unlock()
	return result, nil
}

func (p *GitProvider) resolveTarget(repo *git.Repository) (plumbing.Hash, error) {
	switch p.ref.Kind {
	case RefCommit:
		return plumbing.NewHash(p.ref.Name), nil
	case RefBranch:
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", p.ref.Name), true)
		if err != nil {
			return plumbing.ZeroHash, errors.Wrap(err, errors.CodeIOOperation, "resolve branch")
		}
		return ref.Hash(), nil
	case RefTag:
		ref, err := repo.Tag(p.ref.Name)
		if err != nil {
			return plumbing.ZeroHash, errors.Wrap(err, errors.CodeIOOperation, "resolve tag")
		}
		return ref.Hash(), nil
	default:
		head, err := repo.Reference(plumbing.HEAD, true)
		if err != nil {
			ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), true)
			if err != nil {
				return plumbing.ZeroHash, errors.Wrap(err, errors.CodeIOOperation, "resolve default ref")
			}
			return ref.Hash(), nil
		}
		return head.Hash(), nil
	}
}
