package config

type WorkerKeyStruct struct {
	PersistAnswersQueue  string
	PersistOutcomesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:  "persist_answers_queue",
	PersistOutcomesQueue: "persist_outcomes_queue",
}
