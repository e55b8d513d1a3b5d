package analysis

import (
	"strings"
	"testing"

	"github.com/callgrade/callgrade/internal/scorecard"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(promptRequest{
		Scorecard: &scorecard.Scorecard{
			ID:          "sc-1",
			Name:        "Prospecção Padrão",
			Description: "Ligações de prospecção outbound",
			Criteria: []scorecard.Criterion{
				{ID: "c1", Name: "Abertura", Description: "Apresentação inicial", Weight: 2, MaxScore: 3},
				{ID: "c2", Name: "Fechamento", Weight: 1, MaxScore: 3},
			},
		},
		Transcript: "SDR: Bom dia!\nCliente: Bom dia.",
		SDRName:    "Ana",
		ClientName: "Bruno",
	})

	for _, want := range []string{
		`scorecard "Prospecção Padrão"`,
		"Ligações de prospecção outbound",
		"Vendedor (SDR): Ana",
		"Cliente: Bruno",
		"[id: c1] Abertura (peso 2, pontuação máxima 3)",
		"Apresentação inicial",
		"[id: c2] Fechamento (peso 1, pontuação máxima 3)",
		"SDR: Bom dia!",
		`"criteria_analysis"`,
		`"confidence"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Transcript must be delimited so instructions and content stay apart.
	if strings.Count(prompt, `"""`) != 2 {
		t.Errorf("transcript delimiters = %d, want 2", strings.Count(prompt, `"""`))
	}
}

func TestBuildPrompt_OptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(promptRequest{
		Scorecard: &scorecard.Scorecard{
			Name:     "Padrão",
			Criteria: []scorecard.Criterion{{ID: "c1", Name: "Abertura", Weight: 1, MaxScore: 3}},
		},
		Transcript: "olá",
	})

	if strings.Contains(prompt, "Vendedor (SDR):") {
		t.Error("prompt should omit the SDR line when no name is given")
	}
	if strings.Contains(prompt, "Cliente:") {
		t.Error("prompt should omit the client line when no name is given")
	}
	if strings.Contains(prompt, "Descrição do scorecard:") {
		t.Error("prompt should omit the description line when empty")
	}
}
