package dashscope

import (
	"encoding/json"
	"strings"

	"github.com/caabsu/outlight-img2img/internal/providers/extract"
)

// DashScope answers in different shapes depending on model family and API
// mode. Probed in priority order; multimodal chat first because that is what
// qwen-image-edit returns.
var artifactFinders = []extract.Finder{
	{Name: "output.choices.message.content.image", Find: findChoiceImage},
	{Name: "output.results.url", Find: findResultURL},
	{Name: "data.url", Find: findDataURL},
}

func findChoiceImage(body []byte) string {
	var decoded struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content []struct {
						Image string `json:"image"`
					} `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	for _, choice := range decoded.Output.Choices {
		for _, content := range choice.Message.Content {
			if url := strings.TrimSpace(content.Image); url != "" {
				return url
			}
		}
	}
	return ""
}

func findResultURL(body []byte) string {
	var decoded struct {
		Output struct {
			Results []struct {
				URL string `json:"url"`
			} `json:"results"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	for _, result := range decoded.Output.Results {
		if url := strings.TrimSpace(result.URL); url != "" {
			return url
		}
	}
	return ""
}

func findDataURL(body []byte) string {
	var decoded struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	for _, item := range decoded.Data {
		if url := strings.TrimSpace(item.URL); url != "" {
			return url
		}
	}
	return ""
}
