package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/pot-protocol/pot/crypto"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/node"
	"github.com/pot-protocol/pot/transport"
	"github.com/pot-protocol/pot/turn"
)

var (
	nodeID        string
	peersFlag     string
	peerKeysFlag  string
	listenAddr    string
	turnDuration  time.Duration
	transitionDur time.Duration
	scanFullChain bool
)

func init() {
	flag.StringVar(&nodeID, "node-id", "", "this node's id, must match an entry in -peers")
	flag.StringVar(&peersFlag, "peers", "", "comma-separated node_id@multiaddr list, identical on every node")
	flag.StringVar(&peerKeysFlag, "peer-keys", "", "comma-separated node_id:hex-ed25519-pubkey list, identical on every node")
	flag.StringVar(&listenAddr, "listen", "/ip4/0.0.0.0/udp/10000/quic-v1", "libp2p listen multiaddr")
	flag.DurationVar(&turnDuration, "turn-duration", 30*time.Second, "turn_duration_ms")
	flag.DurationVar(&transitionDur, "transition-duration", 5*time.Second, "transition_duration_ms")
	flag.BoolVar(&scanFullChain, "scan-full-chain", false, "use the full-chain recovery scan instead of the previous-turn window")
	flag.Parse()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type peerAddr struct {
	nodeID string
	addr   peer.AddrInfo
}

func run(ctx context.Context) error {
	if nodeID == "" {
		return errors.New("potnode: -node-id is required")
	}

	peerAddrs, ids, err := parsePeers(peersFlag)
	if err != nil {
		return fmt.Errorf("potnode: parsing -peers: %w", err)
	}
	peerKeys, err := parsePeerKeys(peerKeysFlag)
	if err != nil {
		return fmt.Errorf("potnode: parsing -peer-keys: %w", err)
	}

	p2pKey, privKey, err := getIdentity()
	if err != nil {
		return fmt.Errorf("potnode: loading identity: %w", err)
	}

	listenMAddr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return fmt.Errorf("potnode: parsing -listen: %w", err)
	}

	host, err := libp2p.New(
		libp2p.Identity(p2pKey),
		libp2p.ListenAddrs(listenMAddr),
		libp2p.ResourceManager(&network.NullResourceManager{}),
	)
	if err != nil {
		return err
	}
	defer host.Close()

	fmt.Println("the p2p host is listening on:")
	for _, addr := range host.Addrs() {
		fmt.Printf("* %s/p2p/%s\n", addr, host.ID())
	}

	// Membership here is fixed and known upfront, unlike the dynamic
	// bootstrap-service discovery this binary's ancestor used: every
	// peer's multiaddr is already in -peers, so we dial them directly.
	for _, pa := range peerAddrs {
		if pa.nodeID == nodeID {
			continue
		}
		if err := host.Connect(ctx, pa.addr); err != nil {
			slog.WarnContext(ctx, "could not connect to peer", "peer", pa.nodeID, "err", err)
		}
	}

	pSub, err := pubsub.NewFloodSub(ctx, host)
	if err != nil {
		return err
	}

	gossip, err := transport.NewGossip(pSub)
	if err != nil {
		return err
	}
	defer gossip.Close() //nolint: errcheck

	turnCfg := turn.DefaultConfig()
	turnCfg.TurnDuration = turnDuration
	turnCfg.TransitionDuration = transitionDur
	if scanFullChain {
		turnCfg.RecoveryScanMode = turn.ScanFullChain
	}

	n, err := node.New(node.Config{
		NodeID:         nodeID,
		Peers:          ids,
		PeerPublicKeys: peerKeys,
		PrivKey:        privKey,
		Turn:           turnCfg,
	}, gossip)
	if err != nil {
		return err
	}

	n.Start(ctx)
	defer n.Stop()

	go printState(ctx, n)

	<-ctx.Done()
	return ctx.Err()
}

// printState prints this node's GetState snapshot to stdout as JSON every
// few seconds, the one human/operator-facing boundary where we reach for
// encoding/json instead of the wire codec used for consensus-critical data.
func printState(ctx context.Context, n *node.Node) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(n.GetState())
			if err != nil {
				slog.ErrorContext(ctx, "marshaling node state", "err", err)
				continue
			}
			fmt.Println(string(data))
		}
	}
}

// parsePeers parses "node_id@multiaddr,node_id@multiaddr,..." into
// ordered peer addresses and the fixed, identically-ordered node_id
// list every node bootstraps with.
func parsePeers(s string) ([]peerAddr, []string, error) {
	entries := strings.Split(s, ",")
	addrs := make([]peerAddr, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		parts := strings.SplitN(e, "@", 2)
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("malformed peer entry %q, want node_id@multiaddr", e)
		}
		maddr, err := multiaddr.NewMultiaddr(parts[1])
		if err != nil {
			return nil, nil, fmt.Errorf("peer %q: %w", parts[0], err)
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return nil, nil, fmt.Errorf("peer %q: %w", parts[0], err)
		}
		addrs = append(addrs, peerAddr{nodeID: parts[0], addr: *info})
		ids = append(ids, parts[0])
	}
	if len(ids) == 0 {
		return nil, nil, errors.New("no peers specified")
	}
	return addrs, ids, nil
}

// parsePeerKeys parses "node_id:hex-pubkey,..." into the node_id →
// public key map every node needs at bootstrap.
func parsePeerKeys(s string) (map[string]crypto.PubKey, error) {
	out := make(map[string]crypto.PubKey)
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		parts := strings.SplitN(e, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed peer-key entry %q, want node_id:hex-pubkey", e)
		}
		raw, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("peer-key %q: %w", parts[0], err)
		}
		pub, err := ed25519.BytesToPubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("peer-key %q: %w", parts[0], err)
		}
		out[parts[0]] = pub
	}
	if len(out) == 0 {
		return nil, errors.New("no peer keys specified")
	}
	return out, nil
}

const identityDir = "/.pot"

// getIdentity loads or creates this node's persistent libp2p and
// Proof-of-Turn identity, sharing a single Ed25519 key between both.
func getIdentity() (libp2pcrypto.PrivKey, crypto.PrivKey, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, err
	}

	dir := home + identityDir
	if err = os.Mkdir(dir, os.ModePerm); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, nil, err
	}

	path := dir + "/key"
	var keyBytes []byte
	f, err := os.Open(path)
	if err != nil {
		f, err = os.Create(path)
		if err != nil {
			return nil, nil, err
		}

		p2pPriv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			f.Close()
			return nil, nil, err
		}

		keyBytes, err = libp2pcrypto.MarshalPrivateKey(p2pPriv)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		if _, err = f.Write(keyBytes); err != nil {
			f.Close()
			return nil, nil, err
		}
		if err = f.Sync(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	defer f.Close()

	if keyBytes == nil {
		keyBytes, err = io.ReadAll(f)
		if err != nil {
			return nil, nil, err
		}
	}

	p2pKey, err := libp2pcrypto.UnmarshalPrivateKey(keyBytes)
	if err != nil {
		return nil, nil, err
	}

	raw, err := p2pKey.Raw()
	if err != nil {
		return nil, nil, err
	}
	potKey := ed25519.PrivateKey(raw)

	slog.Info("identity", "public_key", hex.EncodeToString(potKey.PubKey().Bytes()))
	return p2pKey, potKey, nil
}
