package service

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrAnswerExists indicates the set position already has an answer.
	ErrAnswerExists = errors.New("answer already submitted for this position")
	// ErrInvalidPosition indicates the position is not part of the set.
	ErrInvalidPosition = errors.New("position is not part of the interview set")
	// ErrEmptyText indicates nothing was left of a text field after sanitising.
	ErrEmptyText = errors.New("text must not be empty")
	// ErrSetNotReady indicates the set still has unanswered questions or follow-ups.
	ErrSetNotReady = errors.New("interview set is not ready for evaluation")
	// ErrSetEvaluating indicates another request is already running the comprehensive evaluation.
	ErrSetEvaluating = errors.New("interview set evaluation already in progress")
	// ErrSetCompleted indicates the set already has its comprehensive evaluation.
	ErrSetCompleted = errors.New("interview set already completed")
	// ErrNoAnswers indicates there is nothing to evaluate.
	ErrNoAnswers = errors.New("interview set has no answers")
	// ErrNotEnoughQuestions indicates the bank cannot fill the requested set.
	ErrNotEnoughQuestions = errors.New("not enough questions available")
	// ErrFollowUpAnswered indicates the follow-up already has an answer.
	ErrFollowUpAnswered = errors.New("follow-up already answered")
	// ErrFollowUpPending indicates a previous follow-up must be answered first.
	ErrFollowUpPending = errors.New("previous follow-up is still unanswered")
	// ErrNoChanges indicates an update request carried no editable field.
	ErrNoChanges = errors.New("no editable fields provided")
	// ErrNoteEvaluated indicates the note is frozen because it has been evaluated.
	ErrNoteEvaluated = errors.New("answer note already evaluated")
	// ErrNoteInSet indicates the note belongs to an interview set and cannot be removed alone.
	ErrNoteInSet = errors.New("answer note belongs to an interview set")
	// ErrEvaluatorUnavailable indicates the AI evaluator is not configured.
	ErrEvaluatorUnavailable = errors.New("evaluator unavailable")
)
