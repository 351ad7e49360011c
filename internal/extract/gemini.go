package extract

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for receipt extraction.
const DefaultModelName = "gemini-2.5-flash"

// receiptPrompt instructs the model to answer with a strict JSON array of
// line items in the vocabulary the validator expects.
const receiptPrompt = "Analise a foto deste cupom fiscal e extraia todos os itens comprados.\n\n" +
	"Para cada item retorne um objeto com os campos:\n" +
	"- \"produto\": string, nome do produto\n" +
	"- \"quantidade\": number, quantidade comprada\n" +
	"- \"categoria\": string, uma de: Alimentação, Limpeza, Higiene, Bebidas, Outros\n" +
	"- \"preco\": number, preço unitário\n" +
	"- \"data\": string, data da compra no formato DD/MM/YYYY, se visível\n\n" +
	"Retorne SOMENTE um array JSON válido.\n" +
	"Não use cercas de código (```), comentários ou texto extra.\n" +
	"A resposta deve começar com \"[\" e terminar com \"]\".\n"

// qrLinkPrompt asks for the bare URL inside a QR code (SEFAZ receipt links).
const qrLinkPrompt = "Extraia apenas o link (URL) contido no QR Code desta imagem.\n" +
	"Retorne somente o texto da URL, sem explicações.\n"

// Gemini is the genai-backed Extractor.
type Gemini struct {
	apiKey string
	model  string
}

// NewGemini creates a Gemini extractor. An empty model selects
// DefaultModelName; an empty apiKey falls back to the SDK's own environment
// lookup.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{apiKey: apiKey, model: model}
}

// ReceiptItems implements Extractor.
func (g *Gemini) ReceiptItems(ctx context.Context, image []byte, mimeType string) (string, error) {
	return g.generate(ctx, receiptPrompt, image, mimeType)
}

// QRLink implements Extractor.
func (g *Gemini) QRLink(ctx context.Context, image []byte, mimeType string) (string, error) {
	return g.generate(ctx, qrLinkPrompt, image, mimeType)
}

func (g *Gemini) generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("extract: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("extract: empty response from model")
	}

	return rawText, nil
}
