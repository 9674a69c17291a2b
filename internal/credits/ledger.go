// Package credits tracks the demo credit balance of one session.
package credits

import (
	"sync"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

const (
	DefaultInitial = 10

	// UnlimitedDisplay is the balance shown once admin unlock is granted.
	UnlimitedDisplay = 999
)

// Cost is the credit price of one generation of kind.
func Cost(kind domain.OutputKind) int {
	return kind.CreditCost()
}

type Snapshot struct {
	Credits   int  `json:"credits"`
	Unlimited bool `json:"unlimited"`
}

// Ledger is safe for concurrent use. It never goes negative.
type Ledger struct {
	mu        sync.Mutex
	balance   int
	unlimited bool
}

func NewLedger(initial int) *Ledger {
	if initial < 0 {
		initial = 0
	}
	return &Ledger{balance: initial}
}

func (l *Ledger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *Ledger) Unlimited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlimited
}

func (l *Ledger) CanAfford(cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlimited || l.balance >= cost
}

// Check returns an InsufficientCreditError when cost exceeds the balance.
func (l *Ledger) Check(cost int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlimited || l.balance >= cost {
		return nil
	}
	return &domain.InsufficientCreditError{Required: cost, Available: l.balance}
}

// Debit subtracts cost. Unlimited ledgers are never debited.
func (l *Ledger) Debit(cost int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlimited {
		return nil
	}
	if l.balance < cost {
		return &domain.InsufficientCreditError{Required: cost, Available: l.balance}
	}
	l.balance -= cost
	return nil
}

func (l *Ledger) GrantUnlimited() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlimited = true
}

// Snapshot reports the balance as shown to users.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlimited {
		return Snapshot{Credits: UnlimitedDisplay, Unlimited: true}
	}
	return Snapshot{Credits: l.balance}
}
