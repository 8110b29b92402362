package checkin_api

import (
	"html/template"
	"net/http"

	"checkin-gate/internal/models"
	"checkin-gate/internal/utils"
)

const (
	colorGranted = "#2e7d32"
	colorDenied  = "#c62828"
	colorPending = "#1565c0"
)

const (
	textGranted       = "ACCESSO CONSENTITO"
	textDenied        = "ACCESSO NEGATO"
	textAlreadyInside = "Già entrato"
	textConfirm       = "CONFERMA INGRESSO"

	msgHealthy      = "OK - server attivo"
	msgMissingID    = "Errore: ID mancante."
	msgUnknownID    = "Errore: ID non trovato."
	msgMissingToken = "Errore: codice mancante."
	msgUnknownToken = "Errore: codice non valido."
	msgInternal     = "Errore interno."
	msgForbidden    = "Accesso negato: chiave non valida."
	msgLockedOut    = "Troppi tentativi. Riprova più tardi."
)

type gatePage struct {
	Title      string
	Background string
	MainText   string
	Name       string
	Room       string
	Note       string
	ArrivedAt  string
	Token      string
}

var gateTemplate = template.Must(template.New("gate").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <meta http-equiv="Cache-Control" content="no-store, no-cache, must-revalidate, max-age=0">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; font-family: "Times New Roman", serif; background-color: {{.Background}}; color: white;
      display: flex; flex-direction: column; justify-content: center; align-items: center; height: 100vh; text-align: center; }
    .title { font-weight: bold; font-size: clamp(2.4rem, 7vw, 4.2rem); margin-bottom: 60px; }
    .mainText { font-weight: bold; font-size: clamp(3.8rem, 11vw, 7rem); margin-bottom: 40px; }
    .name { font-size: clamp(2.4rem, 7vw, 4rem); margin-bottom: 20px; }
    .subtitle { font-size: clamp(2.6rem, 7vw, 4rem); }
    .time { font-size: clamp(1.4rem, 4vw, 2rem); margin-top: 20px; }
    button { font-size: clamp(2rem, 6vw, 3.4rem); padding: 24px 48px; margin-top: 40px; border: 0; border-radius: 12px; }
  </style>
</head>
<body>
  <div class="title">{{.Title}}</div>
  <div class="mainText">{{.MainText}}</div>
  <div class="name">{{.Name}}</div>
  {{if .Room}}<div class="subtitle">Sala: {{.Room}}</div>{{end}}
  {{if .Note}}<div class="subtitle">{{.Note}}</div>{{end}}
  {{if .ArrivedAt}}<div class="time">{{.ArrivedAt}}</div>{{end}}
  {{if .Token}}
  <form method="POST" action="/confirm">
    <input type="hidden" name="token" value="{{.Token}}">
    <button type="submit">{{.MainText}}</button>
  </form>
  {{end}}
</body>
</html>
`))

type reportRow struct {
	ID        string
	Name      string
	Room      string
	Arrived   bool
	ArrivedAt string
}

type reportPage struct {
	Title   string
	Total   int
	Arrived int
	Rows    []reportRow
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} - report</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
    tr.in { background: #e8f5e9; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>Entrati: {{.Arrived}} / {{.Total}}</p>
  <table>
    <tr><th>id</th><th>nome</th><th>sala</th><th>entrata</th><th>ora_ingresso</th></tr>
    {{range .Rows}}
    <tr{{if .Arrived}} class="in"{{end}}><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.Room}}</td><td>{{if .Arrived}}1{{else}}0{{end}}</td><td>{{.ArrivedAt}}</td></tr>
    {{end}}
  </table>
</body>
</html>
`))

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func (h *Handler) renderGate(w http.ResponseWriter, status int, page gatePage) {
	page.Title = h.Config.EventTitle
	noStore(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := gateTemplate.Execute(w, page); err != nil {
		h.Logger.Error("HTTP", "Failed to render gate page: "+err.Error())
	}
}

func (h *Handler) renderText(w http.ResponseWriter, status int, msg string) {
	noStore(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func (h *Handler) reportRows(guests []models.Guest) reportPage {
	page := reportPage{Title: h.Config.EventTitle, Total: len(guests)}
	for _, g := range guests {
		if g.Arrived {
			page.Arrived++
		}
		page.Rows = append(page.Rows, reportRow{
			ID:        g.ID,
			Name:      g.Name,
			Room:      g.Room,
			Arrived:   g.Arrived,
			ArrivedAt: utils.FormatArrival(g.ArrivedAt, h.Location),
		})
	}
	return page
}
