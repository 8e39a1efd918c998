package taskqueue

type fakeTask struct {
	id        string
	name      string
	queued    bool
	preparing bool
	manual    bool
}

func newTask(id, name string) *fakeTask {
	return &fakeTask{id: id, name: name, manual: true}
}

func (t *fakeTask) Name() string          { return t.name }
func (t *fakeTask) Identity() string      { return t.id }
func (t *fakeTask) SetQueued(queued bool) { t.queued = queued }
func (t *fakeTask) SetPreparing()         { t.preparing = true }
func (t *fakeTask) ResetManualTrigger()   { t.manual = false }

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.(*fakeTask).id
	}
	return out
}
