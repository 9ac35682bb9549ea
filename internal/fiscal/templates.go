package fiscal

import (
	"context"
	"fmt"
	"strings"

	"github.com/plenacare/plantao/pkg/models"
)

// TemplateResponder renders deterministic Portuguese replies from flow
// outcomes. It backs the fiscal service when it is down and is the renderer
// of record in tests. Finalization language appears only in outcomes the
// finalization handler can produce, which it only does while the finish
// reminder is active.
type TemplateResponder struct{}

// NewTemplateResponder creates the fallback responder.
func NewTemplateResponder() *TemplateResponder {
	return &TemplateResponder{}
}

var vitalLabels = map[string]string{
	models.VitalPA:       "pressao arterial (PA)",
	models.VitalFC:       "frequencia cardiaca (FC)",
	models.VitalFR:       "frequencia respiratoria (FR)",
	models.VitalSat:      "saturacao (Sat)",
	models.VitalTemp:     "temperatura (Temp)",
	models.VitalCondResp: "condicao respiratoria",
	"Nota":               "nota clinica",
}

// Render produces the reply text for one outcome.
func (t *TemplateResponder) Render(ctx context.Context, state *models.SessionState, outcome *models.FlowOutcome) (string, error) {
	switch outcome.Event {
	case models.EventNoteSaved:
		return "Nota operacional registrada.", nil

	case models.EventBootstrapped:
		return "Plantao localizado. Pode enviar os dados do paciente.", nil

	case models.EventConfirmationRequested:
		switch outcome.Flow {
		case models.FlowSchedule:
			return "Confirma a presenca no plantao? Responda sim ou nao.", nil
		case models.FlowClinical:
			return "Confirma o envio dos dados clinicos? Responda sim ou nao.", nil
		case models.FlowFinalization:
			return "Confirma o fechamento do plantao? Responda sim ou nao.", nil
		default:
			return "Confirma a operacao? Responda sim ou nao.", nil
		}

	case models.EventCommitted:
		switch outcome.Flow {
		case models.FlowSchedule:
			return "Presenca confirmada.", nil
		case models.FlowClinical:
			return "Dados clinicos salvos no prontuario.", nil
		case models.FlowFinalization:
			return "Plantao encerrado. Bom descanso!", nil
		default:
			return "Operacao concluida.", nil
		}

	case models.EventCancelled:
		return "Operacao cancelada. Nada foi enviado.", nil

	case models.EventMissingFields:
		return "Ainda faltam: " + joinLabels(outcome.Missing) + ". Pode enviar?", nil

	case models.EventNeedsBootstrap:
		return "Nao encontrei um plantao ativo para este numero. Envie uma mensagem como \"oi\" para localizar sua escala.", nil

	case models.EventOperationFailed:
		return "Nao consegui concluir agora. Tente novamente em instantes respondendo sim.", nil

	case models.EventReplay:
		if state.LastReply != "" {
			return state.LastReply, nil
		}
		return "Mensagem ja processada.", nil

	case models.EventHelp:
		return "Posso registrar sinais vitais, notas operacionais e confirmar sua presenca. Como posso ajudar?", nil

	default:
		return "", fmt.Errorf("no template for outcome %q", outcome.Event)
	}
}

func joinLabels(missing []string) string {
	labels := make([]string, 0, len(missing))
	for _, m := range missing {
		if label, ok := vitalLabels[m]; ok {
			labels = append(labels, label)
			continue
		}
		labels = append(labels, m)
	}
	return strings.Join(labels, ", ")
}
