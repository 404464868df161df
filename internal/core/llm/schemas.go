package llm

import "github.com/google/generative-ai-go/genai"

// Response schemas handed to the model so every completion is structurally
// valid JSON. Length and count limits the API cannot express are enforced in
// the prompt and again in post-processing.

func resumenSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	strArr := &genai.Schema{Type: genai.TypeArray, Items: str}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":          str,
			"key_changes":      strArr,
			"key_dates_events": strArr,
			"conclusion":       str,
		},
		Required: []string{"summary", "key_changes", "key_dates_events", "conclusion"},
	}
}

func impactoSchema() *genai.Schema {
	strArr := &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"afectados":            strArr,
			"cambios_operativos":   strArr,
			"riesgos_potenciales":  strArr,
			"beneficios_previstos": strArr,
			"recomendaciones":      strArr,
		},
		Required: []string{
			"afectados", "cambios_operativos", "riesgos_potenciales",
			"beneficios_previstos", "recomendaciones",
		},
	}
}

func digestSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":    str,
			"highlights": {Type: genai.TypeArray, Items: str},
			"top_items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"identificador": str,
						"titulo":        str,
					},
					Required: []string{"identificador", "titulo"},
				},
			},
		},
		Required: []string{"summary", "highlights", "top_items"},
	}
}
