package aggregator

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
)

// Router builds the Aggregator's read API (spec §4.4's read API):
// GET /tasks, GET /tasks/{id}, GET /summary, GET /health.
func (a *Aggregator) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", a.handleTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", a.handleTask).Methods(http.MethodGet)
	r.HandleFunc("/summary", a.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	return r
}

func (a *Aggregator) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks := a.Tasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TaskID < tasks[j].TaskID })
	writeJSON(w, tasks)
}

func (a *Aggregator) handleTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, ok := a.Task(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, task)
}

func (a *Aggregator) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Summary())
}

func (a *Aggregator) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Health())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
