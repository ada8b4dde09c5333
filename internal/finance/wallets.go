package finance

import "bilancio/internal/core"

// WalletIndex resolves snapshot lines to their wallet.
type WalletIndex map[int64]core.Wallet

// IndexWallets builds a WalletIndex. Inactive wallets are kept: their
// historical lines still count.
func IndexWallets(wallets []core.Wallet) WalletIndex {
	idx := make(WalletIndex, len(wallets))
	for _, w := range wallets {
		idx[w.ID] = w
	}
	return idx
}

// WalletTotals splits a set of balances by wallet type.
type WalletTotals struct {
	Liquidity   core.Money `json:"liquidity"`
	Investments core.Money `json:"investments"`
	NetWorth    core.Money `json:"net_worth"`
}

// LabelValue is one slice of a breakdown.
type LabelValue struct {
	Label string     `json:"label"`
	Value core.Money `json:"value"`
}

// TotalsByWalletType sums line amounts per wallet type. Lines whose wallet
// is unknown are skipped, not counted as liquidity.
// NetWorth is always Liquidity + Investments.
func TotalsByWalletType(lines []core.SnapshotLine, wallets WalletIndex) WalletTotals {
	var t WalletTotals
	for _, l := range lines {
		w, ok := wallets[l.WalletID]
		if !ok {
			continue
		}
		switch w.Type {
		case core.Liquidity:
			t.Liquidity = t.Liquidity.Add(l.Amount)
		case core.Invest:
			t.Investments = t.Investments.Add(l.Amount)
		}
	}
	t.NetWorth = t.Liquidity.Add(t.Investments)
	return t
}

// BreakdownByWallet groups line amounts by wallet name, in order of first
// appearance. Sorting is left to presentation.
func BreakdownByWallet(lines []core.SnapshotLine, wallets WalletIndex) []LabelValue {
	pos := make(map[string]int)
	var out []LabelValue
	for _, l := range lines {
		w, ok := wallets[l.WalletID]
		if !ok || w.Name == "" {
			continue
		}
		i, seen := pos[w.Name]
		if !seen {
			i = len(out)
			pos[w.Name] = i
			out = append(out, LabelValue{Label: w.Name})
		}
		out[i].Value = out[i].Value.Add(l.Amount)
	}
	return out
}

// LinesOfType keeps the lines whose wallet has type t.
func LinesOfType(lines []core.SnapshotLine, wallets WalletIndex, t core.WalletType) []core.SnapshotLine {
	var out []core.SnapshotLine
	for _, l := range lines {
		if w, ok := wallets[l.WalletID]; ok && w.Type == t {
			out = append(out, l)
		}
	}
	return out
}
