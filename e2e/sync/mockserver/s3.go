package mockserver

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

type storedObject struct {
	body         []byte
	lastModified time.Time
}

// MockS3Server is a path-style, unauthenticated S3 subset: PUT/GET/HEAD object,
// ListObjectsV2 with continuation tokens, and multi-object delete.
type MockS3Server struct {
	server

	mu       sync.RWMutex
	buckets  map[string]map[string]storedObject
	pageSize int
	// failPuts makes PUTs to these keys fail after reading the body.
	failPuts map[string]bool
}

// NewMockS3Server creates a mock with the given buckets. pageSize bounds list pages.
func NewMockS3Server(pageSize int, buckets ...string) *MockS3Server {
	if pageSize <= 0 {
		pageSize = 1000
	}

	s := &MockS3Server{
		buckets:  make(map[string]map[string]storedObject),
		pageSize: pageSize,
		failPuts: make(map[string]bool),
	}

	for _, bucket := range buckets {
		s.buckets[bucket] = make(map[string]storedObject)
	}

	return s
}

// Start starts the mock server on the given address ("" picks a random port).
func (s *MockS3Server) Start(address string) error {
	router := mux.NewRouter()
	router.HandleFunc("/{bucket}", s.handleList).Methods("GET")
	router.HandleFunc("/{bucket}/", s.handleList).Methods("GET")
	router.HandleFunc("/{bucket}", s.handleDelete).Methods("POST")
	router.HandleFunc("/{bucket}/", s.handleDelete).Methods("POST")
	router.HandleFunc("/{bucket}/{key:.+}", s.handlePut).Methods("PUT")
	router.HandleFunc("/{bucket}/{key:.+}", s.handleGet).Methods("GET")
	router.HandleFunc("/{bucket}/{key:.+}", s.handleHead).Methods("HEAD")

	return s.start(address, router)
}

// Object returns the stored body for key.
func (s *MockS3Server) Object(bucket, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.buckets[bucket][key]

	return obj.body, ok
}

// SetObject stores body under key directly.
func (s *MockS3Server) SetObject(bucket, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]storedObject)
	}

	s.buckets[bucket][key] = storedObject{body: body, lastModified: time.Now().UTC()}
}

// Keys returns the sorted keys of a bucket.
func (s *MockS3Server) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.buckets[bucket]))
	for key := range s.buckets[bucket] {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

// FailPut makes uploads of key fail with a 500.
func (s *MockS3Server) FailPut(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts[key] = true
}

func (s *MockS3Server) handlePut(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "IncompleteBody", err.Error())

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[vars["bucket"]]
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")

		return
	}

	if s.failPuts[vars["key"]] {
		writeS3Error(w, http.StatusInternalServerError, "InternalError", "mock upload failure")

		return
	}

	objects[vars["key"]] = storedObject{body: body, lastModified: time.Now().UTC()}

	w.Header().Set("ETag", fmt.Sprintf("%q", strconv.Itoa(len(body))))
	w.WriteHeader(http.StatusOK)
}

func (s *MockS3Server) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.RLock()
	obj, ok := s.buckets[vars["bucket"]][vars["key"]]
	s.mu.RUnlock()

	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.body)))
	w.Header().Set("Last-Modified", obj.lastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.body)
}

func (s *MockS3Server) handleHead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.RLock()
	obj, ok := s.buckets[vars["bucket"]][vars["key"]]
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(obj.body)))
	w.Header().Set("Last-Modified", obj.lastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

type listContents struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type listBucketResult struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	Xmlns                 string         `xml:"xmlns,attr"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	KeyCount              int            `xml:"KeyCount"`
	MaxKeys               int            `xml:"MaxKeys"`
	IsTruncated           bool           `xml:"IsTruncated"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	Contents              []listContents `xml:"Contents"`
}

func (s *MockS3Server) handleList(w http.ResponseWriter, r *http.Request) {
	bucket := mux.Vars(r)["bucket"]
	query := r.URL.Query()
	prefix := query.Get("prefix")
	token := query.Get("continuation-token")

	s.mu.RLock()
	objects, ok := s.buckets[bucket]

	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	start := 0
	if token != "" {
		start, _ = strconv.Atoi(token)
	}

	end := min(start+s.pageSize, len(keys))

	result := listBucketResult{
		Xmlns:             s3Namespace,
		Name:              bucket,
		Prefix:            prefix,
		MaxKeys:           s.pageSize,
		ContinuationToken: token,
	}

	for _, key := range keys[min(start, len(keys)):end] {
		obj := objects[key]
		result.Contents = append(result.Contents, listContents{
			Key:          key,
			LastModified: obj.lastModified.Format("2006-01-02T15:04:05.000Z"),
			ETag:         fmt.Sprintf("%q", strconv.Itoa(len(obj.body))),
			Size:         int64(len(obj.body)),
			StorageClass: "STANDARD",
		})
	}
	s.mu.RUnlock()

	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")

		return
	}

	result.KeyCount = len(result.Contents)
	if end < len(keys) {
		result.IsTruncated = true
		result.NextContinuationToken = strconv.Itoa(end)
	}

	writeXML(w, http.StatusOK, result)
}

type deleteRequest struct {
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

type deleteResult struct {
	XMLName xml.Name `xml:"DeleteResult"`
	Xmlns   string   `xml:"xmlns,attr"`
}

func (s *MockS3Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	bucket := mux.Vars(r)["bucket"]

	var req deleteRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		writeS3Error(w, http.StatusBadRequest, "MalformedXML", err.Error())

		return
	}

	if len(req.Objects) > 1000 {
		writeS3Error(w, http.StatusBadRequest, "MalformedXML", "too many objects")

		return
	}

	s.mu.Lock()
	for _, obj := range req.Objects {
		delete(s.buckets[bucket], obj.Key)
	}
	s.mu.Unlock()

	writeXML(w, http.StatusOK, deleteResult{Xmlns: s3Namespace})
}

type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	writeXML(w, status, s3Error{Code: code, Message: message})
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}
