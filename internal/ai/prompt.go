package ai

import (
	"strings"

	"github.com/samber/lo"

	"github.com/hoanghai1803/feedwright/internal/models"
)

const coreInstructions = `Você é responsável por reescrever notícias sobre RPG de mesa em português do Brasil.

Regras editoriais obrigatórias:
- Use sempre português do Brasil.
- Escreva em terceira pessoa, com tom informativo e objetivo.
- Use vocabulário típico de RPG de mesa: sistema, cenário, suplemento, livro básico, campanha, mesa, one-shot, playtest, financiamento coletivo etc.
- Mantenha TODOS os fatos exatamente como no texto original:
  - Não altere datas, anos ou horários.
  - Não altere valores numéricos (preços, porcentagens, metas).
  - Não altere nomes próprios de pessoas, editoras, sistemas, cenários, suplementos, eventos, plataformas.
- NÃO invente informações, NÃO complete lacunas, NÃO especule.
- Se algo não estiver claro no texto original, apenas não mencione, em vez de deduzir.
- Não comente sobre o próprio processo de escrita, apenas apresente a notícia.

Tarefa:
- Reescreva o título e o corpo da notícia em português do Brasil, em terceira pessoa.
- Produza um resumo curto (1–2 frases) para ser usado como descrição de busca (meta description).
- Organize o corpo em parágrafos em HTML (<p>...</p>), sem títulos de seção.

Formato de saída (OBRIGATÓRIO):
Responda APENAS com um JSON válido, sem texto extra, sem explicações, sem markdown.
O JSON deve ter exatamente os campos:
{
  "title": "Título reescrito em português do Brasil",
  "content": "<p>Corpo da notícia em HTML, com vocabulário de RPG de mesa...</p>",
  "summary": "Resumo curto em português para meta description."
}`

const editorInstructionsHeader = "\n\nInstruções adicionais fornecidas pelo editor:\n"

const connectionTestPrompt = `Você está testando a conexão do Feedwright.

Responda APENAS com um JSON válido no formato:
{
  "ok": true,
  "message": "Texto curto em português do Brasil confirmando que a IA está acessível."
}`

// RewritePrompt builds the full rewrite prompt: the fixed editorial rules,
// the editor's extra instructions when present, and the source article.
func RewritePrompt(basePrompt string, a models.Article) string {
	var b strings.Builder
	b.WriteString(coreInstructions)

	if p := strings.TrimSpace(basePrompt); p != "" {
		b.WriteString(editorInstructionsHeader)
		b.WriteString(p)
	}

	b.WriteString("\n\nTexto original a ser reescrito:\n\n")
	b.WriteString("TÍTULO:\n")
	b.WriteString(a.Title)
	b.WriteString("\n\nCONTEÚDO:\n")
	b.WriteString(a.ContentText)
	b.WriteString("\n\nLINK DA FONTE:\n")
	b.WriteString(a.Link)
	b.WriteString("\n\nTAGS (se houver):\n- ")
	b.WriteString(joinTags(a.Tags))
	b.WriteString("\n")
	return b.String()
}

func joinTags(tags []string) string {
	clean := lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(t)
		return t, t != ""
	})
	return strings.Join(clean, ", ")
}
