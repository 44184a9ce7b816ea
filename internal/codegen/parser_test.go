package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		kind      Kind
		want      *Signature
		wantErr   bool
	}{
		{
			name:      "Transfer - canonical form",
			signature: "balances.Transfer(AccountId,AccountId,Balance)",
			want: &Signature{
				Raw:     "balances.Transfer(AccountId,AccountId,Balance)",
				Section: "balances",
				Method:  "Transfer",
				Params: []Param{
					{Name: "param0", Type: "AccountId"},
					{Name: "param1", Type: "AccountId"},
					{Name: "param2", Type: "Balance"},
				},
			},
		},
		{
			name:      "Transfer - with names",
			signature: "balances.Transfer(from: AccountId, to: AccountId, amount: Balance)",
			want: &Signature{
				Raw:     "balances.Transfer(from: AccountId, to: AccountId, amount: Balance)",
				Section: "balances",
				Method:  "Transfer",
				Params: []Param{
					{Name: "from", Type: "AccountId"},
					{Name: "to", Type: "AccountId"},
					{Name: "amount", Type: "Balance"},
				},
			},
		},
		{
			name:      "call with generic and path types",
			signature: "balances.setBalance(who: T::AccountId, newFree: Compact<T::Balance>)",
			kind:      CallKind,
			want: &Signature{
				Raw:     "balances.setBalance(who: T::AccountId, newFree: Compact<T::Balance>)",
				Kind:    CallKind,
				Section: "balances",
				Method:  "setBalance",
				Params: []Param{
					{Name: "who", Type: "T::AccountId"},
					{Name: "newFree", Type: "Compact<T::Balance>"},
				},
			},
		},
		{
			name:      "nested commas belong to the type",
			signature: "staking.Payout(stash: AccountId, amounts: Vec<(AccountId, Balance)>)",
			want: &Signature{
				Raw:     "staking.Payout(stash: AccountId, amounts: Vec<(AccountId, Balance)>)",
				Section: "staking",
				Method:  "Payout",
				Params: []Param{
					{Name: "stash", Type: "AccountId"},
					{Name: "amounts", Type: "Vec<(AccountId,Balance)>"},
				},
			},
		},
		{
			name:      "no parameters",
			signature: "system.CodeUpdated()",
			want: &Signature{
				Raw:     "system.CodeUpdated()",
				Section: "system",
				Method:  "CodeUpdated",
				Params:  []Param{},
			},
		},
		{
			name:      "empty signature",
			signature: "",
			wantErr:   true,
		},
		{
			name:      "missing section",
			signature: "Transfer(AccountId)",
			wantErr:   true,
		},
		{
			name:      "lowercase event name",
			signature: "balances.transfer(AccountId)",
			wantErr:   true,
		},
		{
			name:      "uppercase call name",
			signature: "balances.SetBalance(AccountId)",
			kind:      CallKind,
			wantErr:   true,
		},
		{
			name:      "uppercase section",
			signature: "Balances.Transfer(AccountId)",
			wantErr:   true,
		},
		{
			name:      "missing closing parenthesis",
			signature: "balances.Transfer(AccountId",
			wantErr:   true,
		},
		{
			name:      "trailing text",
			signature: "balances.Transfer(AccountId) extra",
			wantErr:   true,
		},
		{
			name:      "unbalanced generic",
			signature: "balances.Transfer(amounts: Vec<Balance)",
			wantErr:   true,
		},
		{
			name:      "duplicate parameter names",
			signature: "balances.Transfer(who: AccountId, who: AccountId)",
			wantErr:   true,
		},
		{
			name:      "invalid parameter name",
			signature: "balances.Transfer(1who: AccountId)",
			wantErr:   true,
		},
		{
			name:      "missing type",
			signature: "balances.Transfer(who: )",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignature(tt.signature, tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignature_Names(t *testing.T) {
	event, err := ParseSignature("balances.Transfer(from: AccountId, to: AccountId, amount: Balance)", EventKind)
	require.NoError(t, err)

	assert.Equal(t, "balances.Transfer", event.FullName())
	assert.False(t, event.IsCall())
	assert.Equal(t, "Transfer", event.EntityName())
	assert.Equal(t, "transfers", event.TableName())
	assert.Equal(t, "HandleTransfer", event.HandlerFunc())
	assert.Equal(t, "balances.handleTransfer", event.HandlerRef("balances"))
	assert.Equal(t, "balances.Transfer(AccountId,AccountId,Balance)", event.CanonicalSignature())

	call, err := ParseSignature("balances.set_balance(who: AccountId)", CallKind)
	require.NoError(t, err)

	assert.True(t, call.IsCall())
	assert.Equal(t, "SetBalanceCall", call.EntityName())
	assert.Equal(t, "set_balance_calls", call.TableName())
	assert.Equal(t, "mymapping.handleSetBalanceCall", call.HandlerRef("mymapping"))
	assert.Equal(t, "call", call.Kind.String())
}

func TestSplitParameters(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{input: "a,b", want: []string{"a", "b"}},
		{input: "x: Vec<(A, B)>, y: [u8; 32]", want: []string{"x: Vec<(A, B)>", " y: [u8; 32]"}},
		{input: "a,", want: []string{"a", ""}},
		{input: "Vec<A", wantErr: true},
		{input: "A>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := splitParameters(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
