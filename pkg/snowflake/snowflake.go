package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	nodeBits        = 10
	stepBits        = 12
	nodeMax         = -1 ^ (-1 << nodeBits)
	stepMask        = -1 ^ (-1 << stepBits)
	timeShift       = nodeBits + stepBits
	nodeShift       = stepBits
	epoch     int64 = 1735689600000 // 2025-01-01 00:00:00 UTC
)

var ErrInvalidNode = errors.New("node number must be between 0 and 1023")

// Node hands out strictly increasing message identities. IDs minted by the
// same node sort in creation order, which is what history ordering relies on.
type Node struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
	node int64
	step int64
}

func NewNode(node int64) (*Node, error) {
	if node < 0 || node > nodeMax {
		return nil, ErrInvalidNode
	}
	return &Node{node: node, now: time.Now}, nil
}

func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now().UnixMilli()

	// Clock moved backwards: keep issuing from the last seen millisecond.
	if now < n.last {
		now = n.last
	}

	if now == n.last {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.last {
				now = n.now().UnixMilli()
				if now < n.last {
					now = n.last
				}
				if now == n.last {
					time.Sleep(100 * time.Microsecond)
				}
			}
		}
	} else {
		n.step = 0
	}

	n.last = now

	return ((now - epoch) << timeShift) | (n.node << nodeShift) | n.step
}

// Time extracts the millisecond timestamp encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + epoch)
}
