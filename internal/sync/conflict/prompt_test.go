package conflict

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshitijomkar/ledger/internal/models"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestNewPrompt_options(t *testing.T) {
	p := NewPrompt([]string{"amount"})

	require.Len(t, p.Options, 2)
	assert.Equal(t, models.ChoiceServer, p.Options[0].Value)
	assert.Equal(t, models.ChoiceLocal, p.Options[1].Value)
	assert.Contains(t, p.Message, "amount")
}

func TestPrompt_text(t *testing.T) {
	res, err := NewResolver().Resolve(txn(500, "local note", t2), txn(700, "server note", t1))
	require.NoError(t, err)

	newGoldie(t).Assert(t, "prompt_amount_description", []byte(res.Prompt().String()))
}

func TestPrompt_json(t *testing.T) {
	data, err := json.MarshalIndent(NewPrompt([]string{"outstanding_balance"}), "", "  ")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "prompt_balance_json", data)
}

func TestPromptFor_deleteConflict(t *testing.T) {
	c := &models.ConflictLog{Table: models.TableCustomers, RecordID: "c1", Kind: models.ConflictDelete}

	newGoldie(t).Assert(t, "prompt_delete", []byte(PromptFor(c).String()))
}
