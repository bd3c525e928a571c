package form

import (
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/form/refdata"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// Element identifiers for page chrome shared by every step.
const (
	// formContainer is the looser fallback readiness signal: the form
	// view itself, present even when a page's first input renders late.
	formContainer = "ctl00_SiteContentPlaceHolder_FormView1"

	// ValidationSummary is the remote site's validation failure banner.
	// Its presence after a transition is authoritative: the step's data
	// was rejected and the job cannot proceed.
	ValidationSummary = "ctl00_SiteContentPlaceHolder_ValidationSummary1"

	// CaptchaImage and CaptchaInput are the human-verification gate.
	CaptchaImage = "c_default_ctl00_sitecontentplaceholder_defaultcaptcha_CaptchaImage"
	CaptchaInput = "ctl00_SiteContentPlaceHolder_DefaultCaptcha_CaptchaTextBox"
	// CaptchaSubmit forwards a typed solution to the remote site.
	CaptchaSubmit = "ctl00_SiteContentPlaceHolder_DefaultCaptcha_ValidateButton"
)

const fv = "ctl00_SiteContentPlaceHolder_FormView1_"

// yesNo is the translation for the remote site's Y/N radio groups:
// option suffix 0 selects yes, 1 selects no.
var yesNo = map[string]string{"Y": "0", "N": "1"}

func ready(target string) driver.Condition {
	return driver.Condition{Target: target, Visible: true, Describe: target}
}

func fallback() driver.Condition {
	return driver.Condition{Target: formContainer, Describe: "form container"}
}

// DefaultSequence returns the seventeen-step application form flow.
// Step definitions are static configuration: targets, field-map keys,
// translation tables, and conditional triggers. The engine owns the
// execution semantics.
func DefaultSequence() *Sequence {
	countries := refdata.Countries()

	return NewSequence(
		Step{
			Name:          "PERSONAL_1",
			Title:         "Personal Information 1",
			Ready:         ready(fv + "tbxAPP_SURNAME"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "personal.surname", Target: fv + "tbxAPP_SURNAME", Kind: KindText},
				{Key: "personal.given_names", Target: fv + "tbxAPP_GIVEN_NAME", Kind: KindText},
				{Key: "personal.full_name_native", Target: fv + "tbxAPP_FULL_NAME_NATIVE", Kind: KindText, Optional: true},
				{
					Key: "personal.other_names_used", Target: fv + "rblOtherNames", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "DListAlias_ctl00_tbxSURNAME",
						Subfields: []Field{
							{Key: "personal.other_surname", Target: fv + "DListAlias_ctl00_tbxSURNAME", Kind: KindText},
							{Key: "personal.other_given_names", Target: fv + "DListAlias_ctl00_tbxGIVEN_NAME", Kind: KindText},
						},
					},
				},
				{Key: "personal.sex", Target: fv + "ddlAPP_GENDER", Kind: KindSelect,
					Translate: map[string]string{"MALE": "M", "FEMALE": "F"}},
				{Key: "personal.marital_status", Target: fv + "ddlAPP_MARITAL_STATUS", Kind: KindSelect,
					Translate: map[string]string{
						"MARRIED": "M", "SINGLE": "S", "WIDOWED": "W", "DIVORCED": "D", "SEPARATED": "P",
					}},
				{Key: "personal.date_of_birth", Kind: KindSplitDate,
					DayTarget:   fv + "ddlDOBDay",
					MonthTarget: fv + "ddlDOBMonth",
					YearTarget:  fv + "tbxDOBYear"},
				{Key: "personal.birth_city", Target: fv + "tbxAPP_POB_CITY", Kind: KindText},
				{Key: "personal.birth_country", Target: fv + "ddlAPP_POB_CNTRY", Kind: KindSelect, Translate: countries},
			},
		},
		Step{
			Name:          "PERSONAL_2",
			Title:         "Personal Information 2",
			Ready:         ready(fv + "ddlAPP_NATL"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "personal.nationality", Target: fv + "ddlAPP_NATL", Kind: KindSelect, Translate: countries},
				{
					Key: "personal.other_nationality", Target: fv + "rblAPP_OTH_NATL_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dtlOTHER_NATL_ctl00_ddlOTHER_NATL",
						Subfields: []Field{
							{Key: "personal.other_nationality_country", Target: fv + "dtlOTHER_NATL_ctl00_ddlOTHER_NATL", Kind: KindSelect, Translate: countries},
						},
					},
				},
				{Key: "personal.national_id", Target: fv + "tbxAPP_NATIONAL_ID", Kind: KindText, Optional: true},
				{Key: "personal.us_social_security", Target: fv + "tbxAPP_SSN1", Kind: KindText, Optional: true},
				{Key: "personal.us_taxpayer_id", Target: fv + "tbxAPP_TAX_ID", Kind: KindText, Optional: true},
			},
		},
		Step{
			Name:          "TRAVEL",
			Title:         "Travel Information",
			Ready:         ready(fv + "dtlPrincipalAppTravel_ctl00_ddlPurposeOfTrip"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "travel.purpose_of_trip", Target: fv + "dtlPrincipalAppTravel_ctl00_ddlPurposeOfTrip", Kind: KindSelect,
					Translate: map[string]string{
						"BUSINESS": "B", "TOURISM": "B", "STUDENT": "F", "EXCHANGE": "J", "WORK": "H", "TRANSIT": "C",
					}},
				{
					Key: "travel.specific_plans", Target: fv + "rblSpecificTravel", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "ddlARRIVAL_US_DTEDay",
						Subfields: []Field{
							{Key: "travel.arrival_date", Kind: KindSplitDate,
								DayTarget:   fv + "ddlARRIVAL_US_DTEDay",
								MonthTarget: fv + "ddlARRIVAL_US_DTEMonth",
								YearTarget:  fv + "tbxARRIVAL_US_DTEYear"},
							{Key: "travel.arrival_flight", Target: fv + "tbxArriveFlight", Kind: KindText, Optional: true},
							{Key: "travel.departure_date", Kind: KindSplitDate,
								DayTarget:   fv + "ddlDEPARTURE_US_DTEDay",
								MonthTarget: fv + "ddlDEPARTURE_US_DTEMonth",
								YearTarget:  fv + "tbxDEPARTURE_US_DTEYear"},
						},
					},
				},
				{Key: "travel.stay_length", Target: fv + "tbxTRAVEL_LOS", Kind: KindText, Optional: true},
				{Key: "travel.stay_length_unit", Target: fv + "ddlTRAVEL_LOS_CD", Kind: KindSelect, Optional: true,
					Translate: map[string]string{"DAYS": "D", "WEEKS": "W", "MONTHS": "M", "YEARS": "Y"}},
				{Key: "travel.us_street_address", Target: fv + "tbxStreetAddress1", Kind: KindText, Optional: true},
				{Key: "travel.us_city", Target: fv + "tbxCity", Kind: KindText, Optional: true},
				{Key: "travel.payer", Target: fv + "ddlWhoIsPaying", Kind: KindSelect, Optional: true,
					Translate: map[string]string{"SELF": "S", "OTHER PERSON": "O", "EMPLOYER": "P", "US EMPLOYER": "U", "OTHER ORG": "C"}},
			},
		},
		Step{
			Name:          "TRAVEL_COMPANIONS",
			Title:         "Travel Companions",
			Ready:         ready(fv + "rblOtherPersonsTravelingWithYou"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{
					Key: "companions.traveling_with_others", Target: fv + "rblOtherPersonsTravelingWithYou", Kind: KindRadio,
					Translate: yesNo,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dlTravelCompanions_ctl00_tbxSurname",
						Subfields: []Field{
							{Key: "companions.surname", Target: fv + "dlTravelCompanions_ctl00_tbxSurname", Kind: KindText},
							{Key: "companions.given_names", Target: fv + "dlTravelCompanions_ctl00_tbxGivenName", Kind: KindText},
							{Key: "companions.relationship", Target: fv + "dlTravelCompanions_ctl00_ddlTCRelationship", Kind: KindSelect,
								Translate: map[string]string{"SPOUSE": "S", "CHILD": "C", "PARENT": "P", "FRIEND": "F", "BUSINESS": "B", "OTHER": "O"}},
						},
					},
				},
			},
		},
		Step{
			Name:          "PREVIOUS_TRAVEL",
			Title:         "Previous U.S. Travel",
			Ready:         ready(fv + "rblPREV_US_TRAVEL_IND"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{
					Key: "previous_travel.been_to_us", Target: fv + "rblPREV_US_TRAVEL_IND", Kind: KindRadio,
					Translate: yesNo,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dtlPREV_US_VISIT_ctl00_ddlPREV_US_VISIT_DTEDay",
						Subfields: []Field{
							{Key: "previous_travel.last_arrival_date", Kind: KindSplitDate,
								DayTarget:   fv + "dtlPREV_US_VISIT_ctl00_ddlPREV_US_VISIT_DTEDay",
								MonthTarget: fv + "dtlPREV_US_VISIT_ctl00_ddlPREV_US_VISIT_DTEMonth",
								YearTarget:  fv + "dtlPREV_US_VISIT_ctl00_tbxPREV_US_VISIT_DTEYear"},
							{Key: "previous_travel.last_stay_length", Target: fv + "dtlPREV_US_VISIT_ctl00_tbxPREV_US_VISIT_LOS", Kind: KindText, Optional: true},
						},
					},
				},
				{
					Key: "previous_travel.prior_visa", Target: fv + "rblPREV_VISA_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "tbxPREV_VISA_FOIL_NUMBER",
						Subfields: []Field{
							{Key: "previous_travel.prior_visa_number", Target: fv + "tbxPREV_VISA_FOIL_NUMBER", Kind: KindText, Optional: true},
						},
					},
				},
				{
					Key: "previous_travel.visa_refused", Target: fv + "rblPREV_VISA_REFUSED_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "tbxPREV_VISA_REFUSED_EXPL",
						Subfields: []Field{
							{Key: "previous_travel.refusal_explanation", Target: fv + "tbxPREV_VISA_REFUSED_EXPL", Kind: KindText},
						},
					},
				},
			},
		},
		Step{
			Name:          "ADDRESS_PHONE",
			Title:         "Address and Phone",
			Ready:         ready(fv + "tbxAPP_ADDR_LN1"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "address.street_line1", Target: fv + "tbxAPP_ADDR_LN1", Kind: KindText},
				{Key: "address.street_line2", Target: fv + "tbxAPP_ADDR_LN2", Kind: KindText, Optional: true},
				{Key: "address.city", Target: fv + "tbxAPP_ADDR_CITY", Kind: KindText},
				{Key: "address.state", Target: fv + "tbxAPP_ADDR_STATE", Kind: KindText, Optional: true},
				{Key: "address.postal_code", Target: fv + "tbxAPP_ADDR_POSTAL_CD", Kind: KindText, Optional: true},
				{Key: "address.country", Target: fv + "ddlCountry", Kind: KindSelect, Translate: countries},
				{Key: "address.primary_phone", Target: fv + "tbxAPP_HOME_TEL", Kind: KindText},
				{Key: "address.secondary_phone", Target: fv + "tbxAPP_MOBILE_TEL", Kind: KindText, Optional: true},
				{Key: "address.email", Target: fv + "tbxAPP_EMAIL_ADDR", Kind: KindText},
			},
		},
		Step{
			Name:          "PASSPORT",
			Title:         "Passport Information",
			Ready:         ready(fv + "ddlPPT_TYPE"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "passport.type", Target: fv + "ddlPPT_TYPE", Kind: KindSelect,
					Translate: map[string]string{"REGULAR": "R", "OFFICIAL": "O", "DIPLOMATIC": "D", "OTHER": "T"}},
				{Key: "passport.number", Target: fv + "tbxPPT_NUM", Kind: KindText},
				{Key: "passport.book_number", Target: fv + "tbxPPT_BOOK_NUM", Kind: KindText, Optional: true},
				{Key: "passport.issuing_country", Target: fv + "ddlPPT_ISSUED_CNTRY", Kind: KindSelect, Translate: countries},
				{Key: "passport.issue_city", Target: fv + "tbxPPT_ISSUED_IN_CITY", Kind: KindText, Optional: true},
				{Key: "passport.issue_date", Kind: KindSplitDate,
					DayTarget:   fv + "ddlPPT_ISSUED_DTEDay",
					MonthTarget: fv + "ddlPPT_ISSUED_DTEMonth",
					YearTarget:  fv + "tbxPPT_ISSUEDYear"},
				{Key: "passport.expiry_date", Kind: KindSplitDate,
					DayTarget:   fv + "ddlPPT_EXPIRE_DTEDay",
					MonthTarget: fv + "ddlPPT_EXPIRE_DTEMonth",
					YearTarget:  fv + "tbxPPT_EXPIREYear"},
				{
					Key: "passport.ever_lost", Target: fv + "rblLOST_PPT_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dtlLostPPT_ctl00_tbxLOST_PPT_NUM",
						Subfields: []Field{
							{Key: "passport.lost_number", Target: fv + "dtlLostPPT_ctl00_tbxLOST_PPT_NUM", Kind: KindText, Optional: true},
							{Key: "passport.lost_explanation", Target: fv + "dtlLostPPT_ctl00_tbxLOST_PPT_EXPL", Kind: KindText},
						},
					},
				},
			},
		},
		Step{
			Name:          "US_CONTACT",
			Title:         "U.S. Point of Contact",
			Ready:         ready(fv + "tbxUS_POC_SURNAME"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "us_contact.surname", Target: fv + "tbxUS_POC_SURNAME", Kind: KindText, Optional: true},
				{Key: "us_contact.given_names", Target: fv + "tbxUS_POC_GIVEN_NAME", Kind: KindText, Optional: true},
				{Key: "us_contact.organization", Target: fv + "tbxUS_POC_ORGANIZATION", Kind: KindText, Optional: true},
				{Key: "us_contact.relationship", Target: fv + "ddlUS_POC_REL_TO_APP", Kind: KindSelect,
					Translate: map[string]string{"RELATIVE": "R", "FRIEND": "F", "BUSINESS": "B", "EMPLOYER": "E", "SCHOOL": "S", "OTHER": "O"}},
				{Key: "us_contact.street_address", Target: fv + "tbxUS_POC_ADDR_LN1", Kind: KindText, Optional: true},
				{Key: "us_contact.city", Target: fv + "tbxUS_POC_ADDR_CITY", Kind: KindText, Optional: true},
				{Key: "us_contact.phone", Target: fv + "tbxUS_POC_TEL", Kind: KindText, Optional: true},
				{Key: "us_contact.email", Target: fv + "tbxUS_POC_EMAIL_ADDR", Kind: KindText, Optional: true},
			},
		},
		Step{
			Name:          "FAMILY_RELATIVES",
			Title:         "Family: Relatives",
			Ready:         ready(fv + "tbxFATHER_SURNAME"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "family.father_surname", Target: fv + "tbxFATHER_SURNAME", Kind: KindText, Optional: true},
				{Key: "family.father_given_names", Target: fv + "tbxFATHER_GIVEN_NAME", Kind: KindText, Optional: true},
				{Key: "family.father_date_of_birth", Kind: KindSplitDate, Optional: true,
					DayTarget:   fv + "ddlFathersDOBDay",
					MonthTarget: fv + "ddlFathersDOBMonth",
					YearTarget:  fv + "tbxFathersDOBYear"},
				{
					Key: "family.father_in_us", Target: fv + "rblFATHER_LIVE_IN_US_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "ddlFATHER_US_STATUS",
						Subfields: []Field{
							{Key: "family.father_us_status", Target: fv + "ddlFATHER_US_STATUS", Kind: KindSelect,
								Translate: map[string]string{"CITIZEN": "S", "PERMANENT RESIDENT": "C", "NONIMMIGRANT": "P", "OTHER": "O"}},
						},
					},
				},
				{Key: "family.mother_surname", Target: fv + "tbxMOTHER_SURNAME", Kind: KindText, Optional: true},
				{Key: "family.mother_given_names", Target: fv + "tbxMOTHER_GIVEN_NAME", Kind: KindText, Optional: true},
				{Key: "family.mother_date_of_birth", Kind: KindSplitDate, Optional: true,
					DayTarget:   fv + "ddlMothersDOBDay",
					MonthTarget: fv + "ddlMothersDOBMonth",
					YearTarget:  fv + "tbxMothersDOBYear"},
				{
					Key: "family.mother_in_us", Target: fv + "rblMOTHER_LIVE_IN_US_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "ddlMOTHER_US_STATUS",
						Subfields: []Field{
							{Key: "family.mother_us_status", Target: fv + "ddlMOTHER_US_STATUS", Kind: KindSelect,
								Translate: map[string]string{"CITIZEN": "S", "PERMANENT RESIDENT": "C", "NONIMMIGRANT": "P", "OTHER": "O"}},
						},
					},
				},
			},
		},
		Step{
			Name:          "FAMILY_SPOUSE",
			Title:         "Family: Spouse",
			Ready:         ready(fv + "tbxSpouseSurname"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "spouse.surname", Target: fv + "tbxSpouseSurname", Kind: KindText, Optional: true},
				{Key: "spouse.given_names", Target: fv + "tbxSpouseGivenName", Kind: KindText, Optional: true},
				{Key: "spouse.date_of_birth", Kind: KindSplitDate, Optional: true,
					DayTarget:   fv + "ddlDOBDay",
					MonthTarget: fv + "ddlDOBMonth",
					YearTarget:  fv + "tbxDOBYear"},
				{Key: "spouse.nationality", Target: fv + "ddlSpouseNatDropDownList", Kind: KindSelect, Optional: true, Translate: countries},
				{Key: "spouse.birth_city", Target: fv + "tbxSpousePOBCity", Kind: KindText, Optional: true},
				{Key: "spouse.birth_country", Target: fv + "ddlSpousePOBCountry", Kind: KindSelect, Optional: true, Translate: countries},
			},
			Hooks: Hooks{
				// The page is relevant only for married applicants; the
				// remote site hides it otherwise but still serves the step.
				Validate: func(fm job.FieldMap) []string {
					if fm.Get("personal.marital_status") != "MARRIED" {
						return nil
					}
					var warnings []string
					for _, key := range []string{"spouse.surname", "spouse.given_names"} {
						if !fm.Has(key) {
							warnings = append(warnings, "step FAMILY_SPOUSE: missing value for \""+key+"\"")
						}
					}
					return warnings
				},
			},
		},
		Step{
			Name:          "WORK_EDUCATION_1",
			Title:         "Present Work / Education",
			Ready:         ready(fv + "ddlPresentOccupation"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "work.present_occupation", Target: fv + "ddlPresentOccupation", Kind: KindSelect,
					Translate: map[string]string{
						"AGRICULTURE": "A", "BUSINESS": "B", "COMPUTER SCIENCE": "CS", "EDUCATION": "ED",
						"ENGINEERING": "EN", "GOVERNMENT": "G", "HOMEMAKER": "H", "MEDICAL": "MH",
						"NOT EMPLOYED": "N", "RETIRED": "RT", "STUDENT": "S", "OTHER": "O",
					}},
				{Key: "work.employer_name", Target: fv + "tbxEmpSchName", Kind: KindText, Optional: true},
				{Key: "work.employer_address", Target: fv + "tbxEmpSchAddr1", Kind: KindText, Optional: true},
				{Key: "work.employer_city", Target: fv + "tbxEmpSchCity", Kind: KindText, Optional: true},
				{Key: "work.employer_country", Target: fv + "ddlEmpSchCountry", Kind: KindSelect, Optional: true, Translate: countries},
				{Key: "work.employer_phone", Target: fv + "tbxWORK_EDUC_TEL", Kind: KindText, Optional: true},
				{Key: "work.monthly_income", Target: fv + "tbxCURR_MONTHLY_SALARY", Kind: KindText, Optional: true},
				{Key: "work.duties", Target: fv + "tbxDescribeDuties", Kind: KindText, Optional: true},
			},
		},
		Step{
			Name:          "WORK_EDUCATION_2",
			Title:         "Previous Work / Education",
			Ready:         ready(fv + "rblPreviouslyEmployed"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{
					Key: "work.previously_employed", Target: fv + "rblPreviouslyEmployed", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dtlPrevEmpl_ctl00_tbEmployerName",
						Subfields: []Field{
							{Key: "work.previous_employer_name", Target: fv + "dtlPrevEmpl_ctl00_tbEmployerName", Kind: KindText},
							{Key: "work.previous_job_title", Target: fv + "dtlPrevEmpl_ctl00_tbJobTitle", Kind: KindText, Optional: true},
							{Key: "work.previous_employment_from", Kind: KindSplitDate, Optional: true,
								DayTarget:   fv + "dtlPrevEmpl_ctl00_ddlEmpDateFromDay",
								MonthTarget: fv + "dtlPrevEmpl_ctl00_ddlEmpDateFromMonth",
								YearTarget:  fv + "dtlPrevEmpl_ctl00_tbxEmpDateFromYear"},
							{Key: "work.previous_employment_to", Kind: KindSplitDate, Optional: true,
								DayTarget:   fv + "dtlPrevEmpl_ctl00_ddlEmpDateToDay",
								MonthTarget: fv + "dtlPrevEmpl_ctl00_ddlEmpDateToMonth",
								YearTarget:  fv + "dtlPrevEmpl_ctl00_tbxEmpDateToYear"},
						},
					},
				},
				{
					Key: "education.attended_secondary_or_above", Target: fv + "rblOtherEduc", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dtlPrevEduc_ctl00_tbxSchoolName",
						Subfields: []Field{
							{Key: "education.school_name", Target: fv + "dtlPrevEduc_ctl00_tbxSchoolName", Kind: KindText},
							{Key: "education.course_of_study", Target: fv + "dtlPrevEduc_ctl00_tbxCourseOfStudy", Kind: KindText, Optional: true},
							{Key: "education.school_city", Target: fv + "dtlPrevEduc_ctl00_tbxSchoolCity", Kind: KindText, Optional: true},
							{Key: "education.school_country", Target: fv + "dtlPrevEduc_ctl00_ddlSchoolCountry", Kind: KindSelect, Optional: true, Translate: countries},
						},
					},
				},
			},
		},
		Step{
			Name:          "WORK_EDUCATION_3",
			Title:         "Additional Work / Education",
			Ready:         ready(fv + "rblCLAN_TRIBE_IND"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "additional.clan_or_tribe", Target: fv + "rblCLAN_TRIBE_IND", Kind: KindRadio, Translate: yesNo, Optional: true},
				{Key: "additional.languages", Target: fv + "dtlLANGUAGES_ctl00_tbxLANGUAGE_NAME", Kind: KindText, Optional: true},
				{
					Key: "additional.countries_visited", Target: fv + "rblCOUNTRIES_VISITED_IND", Kind: KindRadio,
					Translate: yesNo, Optional: true,
					Trigger: &Trigger{
						When:  "Y",
						Await: fv + "dtlCountriesVisited_ctl00_ddlCOUNTRIES_VISITED",
						Subfields: []Field{
							{Key: "additional.visited_country", Target: fv + "dtlCountriesVisited_ctl00_ddlCOUNTRIES_VISITED", Kind: KindSelect, Translate: countries},
						},
					},
				},
				{Key: "additional.specialized_skills", Target: fv + "rblSPECIALIZED_SKILLS_IND", Kind: KindRadio, Translate: yesNo, Optional: true},
				{Key: "additional.military_service", Target: fv + "rblMILITARY_SERVICE_IND", Kind: KindRadio, Translate: yesNo, Optional: true},
			},
		},
		Step{
			Name:          "SECURITY_1",
			Title:         "Security and Background 1",
			Ready:         ready(fv + "rblDisease"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "security.communicable_disease", Target: fv + "rblDisease", Kind: KindRadio, Translate: yesNo},
				{Key: "security.mental_disorder", Target: fv + "rblDisorder", Kind: KindRadio, Translate: yesNo},
				{Key: "security.drug_abuser", Target: fv + "rblDruguser", Kind: KindRadio, Translate: yesNo},
			},
		},
		Step{
			Name:          "SECURITY_2",
			Title:         "Security and Background 2",
			Ready:         ready(fv + "rblArrested"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "security.arrested", Target: fv + "rblArrested", Kind: KindRadio, Translate: yesNo},
				{Key: "security.controlled_substances", Target: fv + "rblControlledSubstances", Kind: KindRadio, Translate: yesNo},
				{Key: "security.prostitution", Target: fv + "rblProstitution", Kind: KindRadio, Translate: yesNo},
				{Key: "security.money_laundering", Target: fv + "rblMoneyLaundering", Kind: KindRadio, Translate: yesNo},
			},
		},
		Step{
			Name:          "SECURITY_3",
			Title:         "Security and Background 3",
			Ready:         ready(fv + "rblIllegalActivity"),
			ReadyFallback: fallback(),
			Next:          fv + "UpdateButton3",
			Fields: []Field{
				{Key: "security.espionage", Target: fv + "rblIllegalActivity", Kind: KindRadio, Translate: yesNo},
				{Key: "security.terrorist_activity", Target: fv + "rblTerroristActivity", Kind: KindRadio, Translate: yesNo},
				{Key: "security.terrorist_org", Target: fv + "rblTerroristOrg", Kind: KindRadio, Translate: yesNo},
				{Key: "security.genocide", Target: fv + "rblGenocide", Kind: KindRadio, Translate: yesNo},
			},
		},
		Step{
			Name:          "LOCATION",
			Title:         "Location",
			Ready:         ready(fv + "ddlLocation"),
			ReadyFallback: fallback(),
			Next:          fv + "btnContinue",
			Fields: []Field{
				{Key: "location.embassy", Target: fv + "ddlLocation", Kind: KindSelect},
				{Key: "location.security_answer", Target: fv + "txbSecurityAnswer", Kind: KindText, Optional: true},
			},
		},
	)
}
