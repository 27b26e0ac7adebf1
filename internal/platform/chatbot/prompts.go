package chatbot

import (
	"fmt"
	"strings"
)

const (
	optionOtherCity = "En otra ciudad"
	optionFirstTime = "Primera vez"
	optionControl   = "Control"
	optionYes       = "si"
	optionNo        = "no"
)

var (
	visitTypeOptions    = []string{optionFirstTime, optionControl}
	confirmationOptions = []string{optionYes, optionNo}
)

const (
	msgGreeting          = "Hola, te ayudaré a solicitar una cita médica."
	msgResume            = "Continuemos con tu solicitud."
	msgRestart           = "Hubo un problema con la conversación. Empecemos de nuevo."
	msgAskDocument       = "Escribe el número de documento de la persona que necesita la cita."
	msgDocumentRequired  = "Necesito el número de documento para continuar."
	msgDocumentFormat    = "El documento debe tener solo números, entre 5 y 15 dígitos. Inténtalo de nuevo."
	msgPersonNotFound    = "No encontramos ningún afiliado con ese documento. Verifica el número e inténtalo de nuevo."
	msgNotOwner          = "Ese documento no corresponde a ti ni a uno de tus beneficiarios. Solo puedes solicitar citas para tu grupo familiar."
	msgAskCityName       = "Escribe el nombre de la ciudad donde necesitas la cita."
	msgPickCity          = "Selecciona la ciudad:"
	msgAskSpecialty      = "¿Qué especialidad necesitas? Escribe el nombre o parte de él."
	msgPickSpecialty     = "Selecciona la especialidad:"
	msgAskVisitType      = "¿Es la primera vez que asistes a esta especialidad o es un control?"
	msgAskDescription    = "Describe brevemente el motivo de la consulta."
	msgAskConfirmation   = "Responde si para confirmar o no para cancelar."
	msgSubmitted         = "Tu solicitud fue registrada. Un agente te contactará para asignar la cita."
	msgCancelled         = "Solicitud cancelada. Puedes iniciar una nueva cuando quieras."
	msgAlreadyCompleted  = "Esta solicitud ya terminó. Inicia una nueva conversación para solicitar otra cita."
	msgNoCityMatches     = "No encontramos ciudades con \"%s\". Intenta con otro nombre."
	msgNoSpecialtyResult = "No encontramos especialidades con \"%s\". Intenta con otro término."
)

func homeCityOption(cityName string) string {
	return "En " + cityName
}

// promptFor renders the question a session in its current state is waiting on.
func promptFor(s Session) Reply {
	switch s.State {
	case StateAwaitingDocument:
		return Reply{Message: msgAskDocument}
	case StateAwaitingCitySelection:
		return cityPrompt(s.Data)
	case StateAwaitingSpecialtySearch:
		return Reply{Message: msgAskSpecialty}
	case StateAwaitingSpecialtySelection:
		return Reply{Message: msgPickSpecialty, List: optionNames(s.Data.SpecialtyCandidates)}
	case StateAwaitingVisitType:
		return Reply{Message: msgAskVisitType, Options: visitTypeOptions}
	case StateAwaitingDescription:
		return Reply{Message: msgAskDescription}
	case StateConfirmation:
		return Reply{Message: summary(s.Data), Options: confirmationOptions}
	case StateCompleted:
		return Reply{Message: msgAlreadyCompleted}
	default:
		return Reply{Message: msgRestart + " " + msgAskDocument}
	}
}

func cityPrompt(d Data) Reply {
	if len(d.CityCandidates) > 0 {
		return Reply{Message: msgPickCity, List: optionNames(d.CityCandidates), Options: []string{optionOtherCity}}
	}
	if d.Person != nil && d.Person.CityName != "" {
		return Reply{
			Message: fmt.Sprintf("Encontramos a %s. ¿Dónde necesitas la cita?", d.Person.Name),
			Options: []string{homeCityOption(d.Person.CityName), optionOtherCity},
		}
	}
	return Reply{Message: msgAskCityName}
}

func summary(d Data) string {
	visit := optionControl
	if d.FirstTime {
		visit = optionFirstTime
	}
	name := ""
	if d.Person != nil {
		name = d.Person.Name
	}
	var b strings.Builder
	b.WriteString("Resumen de tu solicitud:\n")
	fmt.Fprintf(&b, "Paciente: %s\n", name)
	fmt.Fprintf(&b, "Ciudad: %s\n", d.CityName)
	fmt.Fprintf(&b, "Especialidad: %s\n", d.SpecialtyName)
	fmt.Fprintf(&b, "Tipo de cita: %s\n", visit)
	fmt.Fprintf(&b, "Motivo: %s\n", d.Description)
	b.WriteString("¿Confirmas la solicitud?")
	return b.String()
}

func optionNames(opts []Option) []string {
	names := make([]string, len(opts))
	for i, o := range opts {
		names[i] = o.Name
	}
	return names
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
)

// fold normalizes free text for comparison: case, accents and inner
// whitespace are ignored.
func fold(s string) string {
	s = accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

func findOption(opts []Option, input string) (Option, bool) {
	want := fold(input)
	for _, o := range opts {
		if fold(o.Name) == want {
			return o, true
		}
	}
	return Option{}, false
}
