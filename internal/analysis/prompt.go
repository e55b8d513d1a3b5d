package analysis

import (
	"fmt"
	"strings"

	"github.com/callgrade/callgrade/internal/scorecard"
)

// systemPrompt frames the model as a sales-call grader. Prompts are written
// in Brazilian Portuguese, the language of the graded calls.
const systemPrompt = `Você é um avaliador especialista de chamadas de vendas (cold calls e discovery calls).
Avalie a transcrição fornecida de forma rigorosa e objetiva, usando exclusivamente evidências presentes na transcrição.
Responda SOMENTE com um objeto JSON no formato solicitado, sem markdown e sem texto adicional.`

// promptRequest carries the inputs of one prompt build.
type promptRequest struct {
	Scorecard  *scorecard.Scorecard
	Transcript string
	SDRName    string
	ClientName string
}

// buildPrompt assembles the grading prompt: scorecard identity, the 0–3
// integer rubric, every criterion with name/weight/description/max score,
// the transcript, and explicit output-format instructions matching the
// parser's wire shape.
func buildPrompt(req promptRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Avalie a chamada de vendas abaixo usando o scorecard %q.\n", req.Scorecard.Name)
	if req.Scorecard.Description != "" {
		fmt.Fprintf(&sb, "Descrição do scorecard: %s\n", req.Scorecard.Description)
	}
	if req.SDRName != "" {
		fmt.Fprintf(&sb, "Vendedor (SDR): %s\n", req.SDRName)
	}
	if req.ClientName != "" {
		fmt.Fprintf(&sb, "Cliente: %s\n", req.ClientName)
	}

	sb.WriteString(`
Rubrica de pontuação (use apenas números inteiros):
- 0 = critério não atendido
- 1 = atendido parcialmente, com falhas relevantes
- 2 = atendido de forma adequada
- 3 = atendido de forma exemplar

Critérios a avaliar:
`)
	for i, cr := range req.Scorecard.Criteria {
		fmt.Fprintf(&sb, "%d. [id: %s] %s (peso %d, pontuação máxima %d)\n", i+1, cr.ID, cr.Name, cr.Weight, cr.MaxScore)
		if cr.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", cr.Description)
		}
	}

	fmt.Fprintf(&sb, "\nTranscrição da chamada:\n\"\"\"\n%s\n\"\"\"\n", req.Transcript)

	sb.WriteString(`
Responda SOMENTE com um objeto JSON neste formato exato:
{
  "criteria_analysis": [
    {
      "criterion_id": "<id do critério>",
      "achieved_score": <0 a pontuação máxima do critério>,
      "analysis": "<justificativa objetiva da nota>",
      "evidence": ["<trecho literal da transcrição que sustenta a nota>"],
      "suggestions": ["<ação concreta de melhoria>"]
    }
  ],
  "general_feedback": "<avaliação geral da chamada>",
  "strengths": ["<ponto forte>"],
  "improvements": ["<ponto de melhoria>"],
  "confidence": <0.0 a 1.0>
}
Inclua um item em criteria_analysis para cada critério listado, na mesma ordem.`)

	return sb.String()
}
