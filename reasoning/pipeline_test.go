package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/tools"
)

// scriptedProvider returns canned responses in call order.
type scriptedProvider struct {
	name      string
	responses []llm.LLMResponse
	calls     int
	prompts   []string
	toolDefs  [][]llm.ToolDefinition
	messages  [][]llm.ChatMessage
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) next(messages []llm.ChatMessage) (llm.LLMResponse, error) {
	p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	p.messages = append(p.messages, messages)
	if p.calls >= len(p.responses) {
		return llm.LLMResponse{}, fmt.Errorf("no scripted response for call %d", p.calls)
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.CallOptions) (llm.LLMResponse, error) {
	return p.next(messages)
}

func (p *scriptedProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition, opts llm.CallOptions) (llm.LLMResponse, error) {
	p.toolDefs = append(p.toolDefs, defs)
	return p.next(messages)
}

func textResponse(content string) llm.LLMResponse {
	return llm.LLMResponse{Content: content}
}

func lookupCall(id, tool, term string) llm.ToolCall {
	return llm.ToolCall{
		ID:        id,
		Name:      tool,
		Arguments: json.RawMessage(fmt.Sprintf(`{"term": %q}`, term)),
	}
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage, opts llm.CallOptions, chunks chan<- string) (*llm.TokenUsage, error) {
	return nil, fmt.Errorf("not scripted")
}

type scriptedResolver struct {
	providers map[string]llm.Provider
}

func (r *scriptedResolver) ProviderFor(modelID string) (llm.Provider, error) {
	p, ok := r.providers[modelID]
	if !ok {
		return nil, fmt.Errorf("no provider for model %q", modelID)
	}
	return p, nil
}

type recordingAdapter struct {
	name    string
	lookups []string
}

func (a *recordingAdapter) Name() string { return a.name }

func (a *recordingAdapter) Lookup(ctx context.Context, term string) string {
	a.lookups = append(a.lookups, term)
	return fmt.Sprintf("%s: reference entry for %s", a.name, term)
}

func testRegistry(t *testing.T, adapters ...*recordingAdapter) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	for _, a := range adapters {
		if err := registry.Register(tools.NewLookupTool(a, "lookup "+a.name)); err != nil {
			t.Fatalf("register %s: %v", a.name, err)
		}
	}
	return registry
}

func testSpec(t *testing.T, candidates ...string) model.CallSpec {
	t.Helper()
	spec, err := model.NewCallSpec(candidates, model.GenerationParams{MaxTokens: 1024}, model.DefaultSchema())
	if err != nil {
		t.Fatalf("NewCallSpec: %v", err)
	}
	return spec
}

const synthesisJSON = `{
  "primary_suggestion": "Right-sided tension pneumothorax",
  "secondary_findings": ["mediastinal shift to the left"],
  "measurements": [{"structure": "pleural gap", "value": "4.1 cm"}],
  "justification": "The clinical_terms lookup for pneumothorax confirms the air-in-pleural-space pattern seen in the observations."
}`

func imageRequest() model.ReasoningRequest {
	return model.ReasoningRequest{
		Media:    []model.MediaRef{{Handle: "chest-ct-042.dcm", MimeType: "application/dicom"}},
		Modality: model.ModalityImage,
	}
}

func TestDiagnoseRunsFullProtocol(t *testing.T) {
	clinical := &recordingAdapter{name: "clinical_terms"}
	provider := &scriptedProvider{name: "openai", responses: []llm.LLMResponse{
		textResponse("Using the " + strategyCT.Name + ": lungs are clear apart from a right apical lucency."),
		{ToolCalls: []llm.ToolCall{lookupCall("call-1", "clinical_terms", "pneumothorax")}},
		textResponse("Research complete."),
		textResponse(synthesisJSON),
	}}
	resolver := &scriptedResolver{providers: map[string]llm.Provider{"gpt-4o": provider}}
	invoker := llm.NewInvoker(resolver, llm.InvokerConfig{}, zerolog.Nop())
	p := New(invoker, testRegistry(t, clinical), Config{}, zerolog.Nop())

	result, err := p.Diagnose(context.Background(), imageRequest(), testSpec(t, "gpt-4o"))
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}

	if result.PrimarySuggestion != "Right-sided tension pneumothorax" {
		t.Errorf("unexpected primary suggestion: %q", result.PrimarySuggestion)
	}
	if result.Degraded {
		t.Error("result should not be degraded")
	}
	if result.Trace.Strategy != strategyCT.Name {
		t.Errorf("expected CT strategy, got %q", result.Trace.Strategy)
	}
	if len(result.Lookups) != 1 || result.Lookups[0].Tool != "clinical_terms" || result.Lookups[0].Term != "pneumothorax" {
		t.Fatalf("unexpected lookups: %+v", result.Lookups)
	}
	if len(clinical.lookups) != 1 {
		t.Errorf("adapter called %d times, expected 1", len(clinical.lookups))
	}
	if len(result.Trace.Observations) == 0 || !strings.Contains(result.Trace.Observations[0], strategyCT.Name) {
		t.Errorf("observations should carry the strategy name: %+v", result.Trace.Observations)
	}
}

func TestDiagnoseRejectsInvalidRequest(t *testing.T) {
	invoker := llm.NewInvoker(&scriptedResolver{}, llm.InvokerConfig{}, zerolog.Nop())
	p := New(invoker, tools.NewRegistry(), Config{}, zerolog.Nop())

	_, err := p.Diagnose(context.Background(), model.ReasoningRequest{Modality: "image"}, testSpec(t, "gpt-4o"))
	if err == nil {
		t.Fatal("expected validation error for request without media")
	}
}

func TestDiagnoseFallsBackWhenSynthesisInvalid(t *testing.T) {
	// First candidate synthesizes without a primary suggestion; the
	// invoker must treat that as a soft failure and run the second.
	bad := &scriptedProvider{name: "bad", responses: []llm.LLMResponse{
		textResponse("Using the " + strategyCT.Name + ": observation text."),
		textResponse("Research complete."),
		textResponse(`{"primary_suggestion": "", "justification": "nothing"}`),
	}}
	good := &scriptedProvider{name: "good", responses: []llm.LLMResponse{
		textResponse("Using the " + strategyCT.Name + ": observation text."),
		textResponse("Research complete."),
		textResponse(synthesisJSON),
	}}
	resolver := &scriptedResolver{providers: map[string]llm.Provider{
		"deepseek-chat": bad,
		"gpt-4o":        good,
	}}
	invoker := llm.NewInvoker(resolver, llm.InvokerConfig{MaxAttempts: 1}, zerolog.Nop())
	p := New(invoker, tools.NewRegistry(), Config{}, zerolog.Nop())

	result, err := p.Diagnose(context.Background(), imageRequest(), testSpec(t, "deepseek-chat", "gpt-4o"))
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if result.PrimarySuggestion != "Right-sided tension pneumothorax" {
		t.Errorf("expected fallback candidate's result, got %q", result.PrimarySuggestion)
	}
	if bad.calls != 3 {
		t.Errorf("first candidate should have run its full pass, made %d calls", bad.calls)
	}
}

func TestResearchLoopIsBounded(t *testing.T) {
	clinical := &recordingAdapter{name: "clinical_terms"}
	// The model never declares research final; the loop must stop at the
	// configured bound and still synthesize. The scripted provider serves
	// responses in call order, so queue exactly MaxResearchSteps tool-call
	// replies before the synthesis payload.
	responses := []llm.LLMResponse{textResponse("Using the " + strategyCT.Name + ": observation text.")}
	for i := 0; i < 3; i++ {
		responses = append(responses, llm.LLMResponse{
			ToolCalls: []llm.ToolCall{lookupCall(fmt.Sprintf("call-%d", i+1), "clinical_terms", "nodule")},
		})
	}
	responses = append(responses, textResponse(synthesisJSON))

	provider := &scriptedProvider{name: "openai", responses: responses}
	resolver := &scriptedResolver{providers: map[string]llm.Provider{"gpt-4o": provider}}
	invoker := llm.NewInvoker(resolver, llm.InvokerConfig{MaxAttempts: 1}, zerolog.Nop())
	p := New(invoker, testRegistry(t, clinical), Config{MaxResearchSteps: 3}, zerolog.Nop())

	result, err := p.Diagnose(context.Background(), imageRequest(), testSpec(t, "gpt-4o"))
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if len(result.Lookups) != 3 {
		t.Errorf("expected 3 bounded lookups, got %d", len(result.Lookups))
	}
	for i, inv := range result.Lookups {
		if inv.Order != i {
			t.Errorf("lookup %d has order %d", i, inv.Order)
		}
	}
}

func TestResearchDispatchesNativeToolCalls(t *testing.T) {
	clinical := &recordingAdapter{name: "clinical_terms"}
	provider := &scriptedProvider{name: "openai", responses: []llm.LLMResponse{
		textResponse("Using the " + strategyCT.Name + ": observation text."),
		{ToolCalls: []llm.ToolCall{
			lookupCall("call-1", "clinical_terms", "pneumothorax"),
			lookupCall("call-2", "clinical_terms", "pleural effusion"),
		}},
		textResponse("Research complete."),
		textResponse(synthesisJSON),
	}}
	resolver := &scriptedResolver{providers: map[string]llm.Provider{"gpt-4o": provider}}
	invoker := llm.NewInvoker(resolver, llm.InvokerConfig{MaxAttempts: 1}, zerolog.Nop())
	p := New(invoker, testRegistry(t, clinical), Config{}, zerolog.Nop())

	result, err := p.Diagnose(context.Background(), imageRequest(), testSpec(t, "gpt-4o"))
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}

	if len(result.Lookups) != 2 {
		t.Fatalf("both calls must be dispatched, got %+v", result.Lookups)
	}
	if result.Lookups[0].Term != "pneumothorax" || result.Lookups[1].Term != "pleural effusion" {
		t.Errorf("calls dispatched out of order: %+v", result.Lookups)
	}

	// The research round must receive the tool declarations.
	if len(provider.toolDefs) == 0 || len(provider.toolDefs[0]) != 1 || provider.toolDefs[0][0].Name != "clinical_terms" {
		t.Fatalf("unexpected tool declarations: %+v", provider.toolDefs)
	}

	// The second research round must carry the assistant's tool calls and
	// one tool result per call, keyed by call id.
	second := provider.messages[2]
	var toolResults []llm.ChatMessage
	sawAssistant := false
	for _, msg := range second {
		switch msg.Role {
		case "assistant":
			sawAssistant = len(msg.ToolCalls) == 2
		case "tool":
			toolResults = append(toolResults, msg)
		}
	}
	if !sawAssistant {
		t.Error("assistant turn with both tool calls missing from the follow-up round")
	}
	if len(toolResults) != 2 || toolResults[0].ToolCallID != "call-1" || toolResults[1].ToolCallID != "call-2" {
		t.Errorf("expected one result per tool call: %+v", toolResults)
	}
	for _, res := range toolResults {
		if !strings.Contains(res.Content, "clinical_terms") {
			t.Errorf("tool result should carry the adapter output, got %q", res.Content)
		}
	}
}

func TestToolDefinitionsSortedWithRequiredTerm(t *testing.T) {
	registry := testRegistry(t,
		&recordingAdapter{name: "clinical_terms"},
		&recordingAdapter{name: "anatomy_atlas"})

	defs := toolDefinitions(registry)
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "anatomy_atlas" || defs[1].Name != "clinical_terms" {
		t.Errorf("definitions must be sorted by name: %q, %q", defs[0].Name, defs[1].Name)
	}

	params := defs[1].Parameters
	if params["type"] != "object" {
		t.Errorf("parameters must be an object schema: %v", params["type"])
	}
	required, ok := params["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "term" {
		t.Errorf("term must be the sole required parameter: %v", params["required"])
	}
	props, ok := params["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties missing: %v", params)
	}
	if _, ok := props["term"]; !ok {
		t.Errorf("term property missing: %v", props)
	}
}

func TestStrategySelection(t *testing.T) {
	cases := []struct {
		name string
		req  model.ReasoningRequest
		want string
	}{
		{
			name: "video gets temporal framing",
			req: model.ReasoningRequest{
				Media:    []model.MediaRef{{Handle: "echo-clip.mp4", MimeType: "video/mp4"}},
				Modality: model.ModalityVideo,
			},
			want: strategyVideo.Name,
		},
		{
			name: "dicom ct handle gets density framing",
			req:  imageRequest(),
			want: strategyCT.Name,
		},
		{
			name: "mri hint gets signal framing",
			req: model.ReasoningRequest{
				Media:    []model.MediaRef{{Handle: "brain-mri-007.dcm", MimeType: "application/dicom"}},
				Modality: model.ModalityImage,
			},
			want: strategyMR.Name,
		},
		{
			name: "plain image defaults to radiograph framing",
			req: model.ReasoningRequest{
				Media:    []model.MediaRef{{Handle: "wrist.png", MimeType: "image/png"}},
				Modality: model.ModalityImage,
			},
			want: strategyRadiograph.Name,
		},
		{
			name: "structured imaging without hints defaults to ct",
			req: model.ReasoningRequest{
				Media:             []model.MediaRef{{Handle: "series-1", MimeType: "application/octet-stream"}},
				Modality:          model.ModalityImage,
				StructuredImaging: true,
			},
			want: strategyCT.Name,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := strategyFor(tc.req).Name; got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObservationPromptPrioritizesRegionOfInterest(t *testing.T) {
	req := imageRequest()
	req.RegionOfInterest = "right upper lobe"

	prompt := observationPrompt(req, strategyCT)
	roiIdx := strings.Index(prompt, "right upper lobe")
	restIdx := strings.Index(prompt, "remainder of the study")
	if roiIdx < 0 || restIdx < 0 || roiIdx > restIdx {
		t.Errorf("region of interest must come before the general instruction:\n%s", prompt)
	}
	if !strings.Contains(prompt, "normal findings before abnormal") {
		t.Errorf("prompt must order normal before abnormal:\n%s", prompt)
	}
}

func TestFormatReportMentionsAllSections(t *testing.T) {
	report := FormatReport(model.ReasoningResult{
		PrimarySuggestion: "Lobar pneumonia",
		SecondaryFindings: []string{"small left pleural effusion"},
		Measurements:      []model.Measurement{{Structure: "consolidation", Value: "5 cm"}},
		Trace:             model.Trace{Justification: "consistent with lookup results"},
		Lookups:           []model.ToolInvocation{{Tool: "clinical_terms", Term: "pneumonia"}},
	})

	for _, want := range []string{"Lobar pneumonia", "pleural effusion", "5 cm", "clinical_terms"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
